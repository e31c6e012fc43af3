package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/query"
)

// sqlStore holds the telemetry operations shared by every database/sql
// backend. The concrete stores embed it.
type sqlStore struct {
	path    string
	conn    *sql.DB
	dialect Dialect
}

// Close closes the database connection.
func (db *sqlStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path or connection string of the database.
func (db *sqlStore) Path() string {
	return db.path
}

// Conn returns the underlying *sql.DB connection for advanced query usage.
func (db *sqlStore) Conn() *sql.DB {
	return db.conn
}

// createSchema builds all tables and indexes for a new database.
func (db *sqlStore) createSchema() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range model.Tables {
		if _, err := tx.Exec(createTableSQL(db.dialect, t)); err != nil {
			return fmt.Errorf("creating %s table: %w", t.Name, err)
		}
		if !t.Timed {
			continue
		}
		for _, c := range indexedColumns {
			if _, err := tx.Exec(createIndexSQL(db.dialect, t, c)); err != nil {
				return fmt.Errorf("creating index on %s.%s: %w", t.Name, c, err)
			}
		}
	}
	return tx.Commit()
}

// Migrate adds any column missing from a table created by an older release.
func (db *sqlStore) Migrate() error {
	for _, t := range model.Tables {
		for _, c := range t.Columns {
			var count int
			if err := db.conn.QueryRow(db.dialect.SchemaCheckColumnSQL(t.Name, c)).Scan(&count); err != nil {
				return fmt.Errorf("checking %s.%s: %w", t.Name, c, err)
			}
			if count > 0 {
				continue
			}
			if _, err := db.conn.Exec(addColumnSQL(db.dialect, t, c)); err != nil {
				return fmt.Errorf("adding %s.%s: %w", t.Name, c, err)
			}
		}
	}
	return nil
}

// rowsOf flattens a payload into the column values of each table.
func (db *sqlStore) rowsOf(p *dataset.Payload) (map[string][][]interface{}, error) {
	s := db.dialect.SanitizeText
	rows := make(map[string][][]interface{}, len(model.Tables))
	for _, v := range p.Ports {
		pids, err := json.Marshal(v.ProcessIDs)
		if err != nil {
			return nil, fmt.Errorf("encoding process ids of port %s: %w", v.ID, err)
		}
		if v.ProcessIDs == nil {
			pids = []byte("[]")
		}
		rows[model.PortsTable.Name] = append(rows[model.PortsTable.Name],
			[]interface{}{s(v.ID), v.PortNumber, s(v.HostName), string(pids)})
	}
	for _, v := range p.Processes {
		rows[model.ProcessesTable.Name] = append(rows[model.ProcessesTable.Name],
			[]interface{}{s(v.ID), s(v.Name), s(v.HostName)})
	}
	for _, v := range p.Files {
		rows[model.FilesTable.Name] = append(rows[model.FilesTable.Name],
			[]interface{}{s(v.ID), s(v.Path), s(v.Name), s(v.Type), s(v.HostName)})
	}
	for _, v := range p.Endpoints {
		rows[model.EndpointsTable.Name] = append(rows[model.EndpointsTable.Name],
			[]interface{}{s(v.ID), s(v.HostName), s(v.HostIP)})
	}
	for _, v := range p.FileVersions {
		rows[model.FileVersionsTable.Name] = append(rows[model.FileVersionsTable.Name],
			[]interface{}{s(v.ID), v.Timestamp, s(v.Source), s(v.Target), v.Size, s(v.Action)})
	}
	for _, v := range p.NetworkActivities {
		rows[model.NetworkActivitiesTable.Name] = append(rows[model.NetworkActivitiesTable.Name],
			[]interface{}{s(v.ID), v.Timestamp, s(v.Source), s(v.Target), v.Size, s(v.Protocol), s(v.Process)})
	}
	return rows, nil
}

// InsertPayload upserts a payload inside a single transaction.
// The onProgress callback is called every 10,000 rows with the current count.
// Pass nil for onProgress if you don't need progress updates.
func (db *sqlStore) InsertPayload(ctx context.Context, p *dataset.Payload, onProgress func(count int)) (int, error) {
	rows, err := db.rowsOf(p)
	if err != nil {
		return 0, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, t := range model.Tables {
		if len(rows[t.Name]) == 0 {
			continue
		}
		stmt, err := tx.PrepareContext(ctx, db.dialect.UpsertSQL(t))
		if err != nil {
			return inserted, fmt.Errorf("preparing %s insert: %w", t.Name, err)
		}
		for _, r := range rows[t.Name] {
			if _, err := stmt.ExecContext(ctx, r...); err != nil {
				stmt.Close()
				return inserted, fmt.Errorf("inserting %s row %v: %w", t.Name, r[0], err)
			}
			inserted++
			if onProgress != nil && inserted%10000 == 0 {
				onProgress(inserted)
			}
		}
		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing transaction: %w", err)
	}
	return inserted, nil
}

// CountRows returns the number of rows in one table.
func (db *sqlStore) CountRows(ctx context.Context, t model.Table) (int64, error) {
	sqlStr, args := query.New(t, 0).BuildCount(db.dialect)
	var count int64
	if err := db.conn.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", t.Name, err)
	}
	return count, nil
}

// DataAvailability returns the span of both event tables.
func (db *sqlStore) DataAvailability(ctx context.Context) (model.Range, error) {
	var (
		rng   model.Range
		found bool
	)
	for _, t := range []model.Table{model.FileVersionsTable, model.NetworkActivitiesTable} {
		sqlStr, args := query.New(t, 0).BuildSpan(db.dialect)
		var lo, hi sql.NullInt64
		var n int64
		if err := db.conn.QueryRowContext(ctx, sqlStr, args...).Scan(&lo, &hi, &n); err != nil {
			return model.Range{}, fmt.Errorf("reading %s span: %w", t.Name, err)
		}
		if n == 0 || !lo.Valid || !hi.Valid {
			continue
		}
		if !found || lo.Int64 < rng.Start {
			rng.Start = lo.Int64
		}
		if !found || hi.Int64+1 > rng.End {
			rng.End = hi.Int64 + 1
		}
		found = true
	}
	if !found {
		return model.Range{}, dataset.ErrNoEvents
	}
	return rng, nil
}

// AnalysisData loads the six collections concurrently.
func (db *sqlStore) AnalysisData(ctx context.Context, rng model.Range) (*dataset.Payload, error) {
	p := &dataset.Payload{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return db.selectRows(ctx, model.PortsTable, rng, func(r *sql.Rows) error {
			var v model.Port
			var pids string
			if err := r.Scan(&v.ID, &v.PortNumber, &v.HostName, &pids); err != nil {
				return err
			}
			if pids != "" {
				if err := json.Unmarshal([]byte(pids), &v.ProcessIDs); err != nil {
					return fmt.Errorf("decoding process ids of port %s: %w", v.ID, err)
				}
			}
			if len(v.ProcessIDs) == 0 {
				v.ProcessIDs = nil
			}
			p.Ports = append(p.Ports, v)
			return nil
		})
	})
	g.Go(func() error {
		return db.selectRows(ctx, model.ProcessesTable, rng, func(r *sql.Rows) error {
			var v model.Process
			if err := r.Scan(&v.ID, &v.Name, &v.HostName); err != nil {
				return err
			}
			p.Processes = append(p.Processes, v)
			return nil
		})
	})
	g.Go(func() error {
		return db.selectRows(ctx, model.FilesTable, rng, func(r *sql.Rows) error {
			var v model.File
			if err := r.Scan(&v.ID, &v.Path, &v.Name, &v.Type, &v.HostName); err != nil {
				return err
			}
			p.Files = append(p.Files, v)
			return nil
		})
	})
	g.Go(func() error {
		return db.selectRows(ctx, model.EndpointsTable, rng, func(r *sql.Rows) error {
			var v model.Endpoint
			if err := r.Scan(&v.ID, &v.HostName, &v.HostIP); err != nil {
				return err
			}
			p.Endpoints = append(p.Endpoints, v)
			return nil
		})
	})
	g.Go(func() error {
		return db.selectRows(ctx, model.FileVersionsTable, rng, func(r *sql.Rows) error {
			var v model.FileVersion
			if err := r.Scan(&v.ID, &v.Timestamp, &v.Source, &v.Target, &v.Size, &v.Action); err != nil {
				return err
			}
			p.FileVersions = append(p.FileVersions, v)
			return nil
		})
	})
	g.Go(func() error {
		return db.selectRows(ctx, model.NetworkActivitiesTable, rng, func(r *sql.Rows) error {
			var v model.NetworkActivity
			if err := r.Scan(&v.ID, &v.Timestamp, &v.Source, &v.Target, &v.Size, &v.Protocol, &v.Process); err != nil {
				return err
			}
			p.NetworkActivities = append(p.NetworkActivities, v)
			return nil
		})
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading analysis data: %w", err)
	}
	return p, nil
}

// selectRows runs the table query, restricted to rng for event tables and
// ordered by id, calling scan for every row.
func (db *sqlStore) selectRows(ctx context.Context, t model.Table, rng model.Range, scan func(*sql.Rows) error) error {
	q := query.New(t, 0)
	q.AddPredicate(query.TimeRange(t, rng.Start, rng.End))
	if err := q.OrderBy("id"); err != nil {
		return err
	}
	sqlStr, args := q.Build(db.dialect)

	rows, err := db.conn.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("querying %s: %w", t.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scanning %s row: %w", t.Name, err)
		}
	}
	return rows.Err()
}
