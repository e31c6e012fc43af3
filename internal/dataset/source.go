package dataset

import (
	"context"
	"errors"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// ErrNoEvents is returned by DataAvailability when there are no raw events.
var ErrNoEvents = errors.New("no events available")

// StaticSource serves a fixed payload. It backs tests and the one-shot CLI
// path where telemetry is read straight from a file.
type StaticSource struct {
	Payload *Payload
}

// DataAvailability returns the span covered by the payload's events. End is
// one past the latest timestamp so that a search over the full span includes it.
func (s *StaticSource) DataAvailability(ctx context.Context) (model.Range, error) {
	if err := ctx.Err(); err != nil {
		return model.Range{}, err
	}
	if s.Payload == nil {
		return model.Range{}, ErrNoEvents
	}
	first := true
	var rng model.Range
	extend := func(ts int64) {
		if first {
			rng = model.Range{Start: ts, End: ts + 1}
			first = false
			return
		}
		if ts < rng.Start {
			rng.Start = ts
		}
		if ts+1 > rng.End {
			rng.End = ts + 1
		}
	}
	for _, fv := range s.Payload.FileVersions {
		extend(fv.Timestamp)
	}
	for _, na := range s.Payload.NetworkActivities {
		extend(na.Timestamp)
	}
	if first {
		return model.Range{}, ErrNoEvents
	}
	return rng, nil
}

// AnalysisData returns every entity and the events with Start <= timestamp <= End.
func (s *StaticSource) AnalysisData(ctx context.Context, rng model.Range) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &Payload{}
	if s.Payload == nil {
		return out, nil
	}
	out.Ports = append(out.Ports, s.Payload.Ports...)
	out.Processes = append(out.Processes, s.Payload.Processes...)
	out.Files = append(out.Files, s.Payload.Files...)
	out.Endpoints = append(out.Endpoints, s.Payload.Endpoints...)
	for _, fv := range s.Payload.FileVersions {
		if fv.Timestamp >= rng.Start && fv.Timestamp <= rng.End {
			out.FileVersions = append(out.FileVersions, fv)
		}
	}
	for _, na := range s.Payload.NetworkActivities {
		if na.Timestamp >= rng.Start && na.Timestamp <= rng.End {
			out.NetworkActivities = append(out.NetworkActivities, na)
		}
	}
	return out, nil
}
