package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/database"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/engine"
	"github.com/cdtdelta/4n6graph/internal/flowcsv"
	"github.com/cdtdelta/4n6graph/internal/jsonlparser"
)

// readFile loads a telemetry export. format is "jsonl", "flow" or "auto",
// which picks whichever reader accepts the file.
func (a *app) readFile(path, format string) (*dataset.Payload, int, int, error) {
	if format == "auto" {
		switch {
		case jsonlparser.ValidateFile(path) == nil:
			format = "jsonl"
		case flowcsv.ValidateFile(path) == nil:
			format = "flow"
		default:
			return nil, 0, 0, fmt.Errorf("%s is neither telemetry JSONL nor a flow CSV", path)
		}
	}

	progress := func(count int) {
		a.log.Info("reading", zap.String("file", path), zap.String("records", humanize.Comma(int64(count))))
	}

	switch format {
	case "jsonl":
		if err := jsonlparser.ValidateFile(path); err != nil {
			return nil, 0, 0, fmt.Errorf("invalid JSONL file: %w", err)
		}
		res, err := jsonlparser.ReadEvents(path, progress)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("reading JSONL: %w", err)
		}
		return res.Payload, res.Count, res.Excluded, nil
	case "flow":
		if err := flowcsv.ValidateFile(path); err != nil {
			return nil, 0, 0, fmt.Errorf("invalid flow CSV: %w", err)
		}
		res, err := flowcsv.ReadEvents(path, progress)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("reading flow CSV: %w", err)
		}
		return res.Payload, res.Count, res.Excluded, nil
	default:
		return nil, 0, 0, fmt.Errorf("unknown input format %q (want auto, jsonl or flow)", format)
	}
}

// openSource returns the telemetry source for a command: the file named by
// --input when set, otherwise the configured database. The returned func
// releases it.
func (a *app) openSource(cmd *cobra.Command) (engine.Source, func(), error) {
	input, _ := cmd.Flags().GetString("input")
	if input != "" {
		format, _ := cmd.Flags().GetString("input-format")
		p, count, excluded, err := a.readFile(input, format)
		if err != nil {
			return nil, nil, err
		}
		a.log.Debug("loaded input file", zap.String("file", input), zap.Int("records", count), zap.Int("excluded", excluded))
		return &dataset.StaticSource{Payload: p}, func() {}, nil
	}

	store, err := database.OpenStore(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("input", "", "read telemetry from this file instead of the database")
	cmd.Flags().String("input-format", "auto", "input file format: auto, jsonl or flow")
}

// parseTime accepts epoch milliseconds or an RFC3339 timestamp.
func parseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("time %q is neither epoch milliseconds nor RFC3339", s)
	}
	return t.UnixMilli(), nil
}
