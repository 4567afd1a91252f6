package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_outputs (
	run_id      TEXT        NOT NULL,
	output      TEXT        NOT NULL,
	row_number  INTEGER     NOT NULL,
	data        JSONB       NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, output, row_number)
)`

// PostgresArchive stores every output row of a run as a JSON document.
type PostgresArchive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresArchive opens a pool on databaseURL. The schema is created on
// first publish.
func NewPostgresArchive(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}
	return &PostgresArchive{
		pool:   pool,
		logger: logger.With(slog.String("component", "postgres_archive")),
		now:    time.Now,
	}, nil
}

// Publish replaces the rows archived for runID with tables.
func (a *PostgresArchive) Publish(ctx context.Context, runID string, tables []Table) error {
	if _, err := a.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create archive table: %w", err)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	archivedAt := a.now().UTC()
	rows := 0
	for _, t := range tables {
		docs, err := rowDocuments(t)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		batch.Queue(`DELETE FROM pipeline_outputs WHERE run_id = $1 AND output = $2`, runID, t.Name)
		for i, doc := range docs {
			batch.Queue(
				`INSERT INTO pipeline_outputs (run_id, output, row_number, data, archived_at) VALUES ($1, $2, $3, $4, $5)`,
				runID, t.Name, i+1, doc, archivedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to archive %s: %w", t.Name, err)
		}
		rows += len(docs)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}
	a.logger.InfoContext(ctx, "Tables archived",
		slog.String("run_id", runID),
		slog.Int("tables", len(tables)),
		slog.Int("rows", rows))
	return nil
}

// rowDocuments encodes each row as a JSON object keyed by header.
func rowDocuments(t Table) ([][]byte, error) {
	out := make([][]byte, len(t.Rows))
	for i, row := range t.Rows {
		doc := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			if j < len(row) {
				doc[h] = row[j]
			}
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s row %d: %w", t.Name, i+1, err)
		}
		out[i] = b
	}
	return out, nil
}

func (a *PostgresArchive) Close() error {
	a.pool.Close()
	return nil
}
