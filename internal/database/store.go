package database

import (
	"context"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// Store defines the interface for all telemetry database operations.
// Every method the application needs is captured here so that callers
// depend on the interface, not on a concrete database type. A Store also
// satisfies engine.Source.
type Store interface {
	// InsertPayload upserts entities and events by id inside a single
	// transaction. onProgress is called every 10,000 rows; pass nil to skip.
	InsertPayload(ctx context.Context, p *dataset.Payload, onProgress func(count int)) (int, error)

	// DataAvailability returns the span covered by stored events. End is one
	// past the latest timestamp.
	DataAvailability(ctx context.Context) (model.Range, error)

	// AnalysisData returns every entity and the events with
	// rng.Start <= timestamp <= rng.End.
	AnalysisData(ctx context.Context, rng model.Range) (*dataset.Payload, error)

	// CountRows returns the number of rows in one telemetry table.
	CountRows(ctx context.Context, table model.Table) (int64, error)

	// Schema and maintenance
	Migrate() error

	// Lifecycle
	Close() error
	Path() string
}
