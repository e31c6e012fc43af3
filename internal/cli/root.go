// Package cli implements the 4n6graph command line: importing telemetry,
// rendering a window of it, and serving the interactive session over HTTP.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/config"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfgFile string
	verbose bool

	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree so tests can run commands side by side.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "4n6graph",
		Short: "Explore forensic telemetry as a time-windowed graph",
		Long: `4n6graph aggregates file-edit and network telemetry between hosts,
processes, ports and files into links, and shows which of them are active
in any time window of a search.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./4n6graph.yaml or $HOME/.4n6graph/4n6graph.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.String("driver", "", "database driver: sqlite or postgres")
	flags.String("dsn", "", "database file path or connection string")

	a.v = config.New("")

	rootCmd.AddCommand(
		newImportCommand(a),
		newGraphCommand(a),
		newHistogramCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v = config.New(a.cfgFile)
	}
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"database.driver": "driver",
		"database.dsn":    "dsn",
		"server.address":  "addr",
	} {
		if f := flags.Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	if a.verbose {
		a.v.Set("log.level", "debug")
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := cfg.Log.NewLogger()
	if err != nil {
		return err
	}
	a.log = log
	a.log.Debug("configuration loaded",
		zap.String("file", a.v.ConfigFileUsed()),
		zap.String("driver", cfg.Database.Driver),
		zap.Int64("granularity", cfg.Analysis.Granularity))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
