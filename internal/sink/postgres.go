package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/aggregate"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// PostgresSink upserts records into a single table keyed by a caller-chosen
// record key. ON CONFLICT DO UPDATE gives replace semantics, so rewriting a
// unit after a crashed run never duplicates rows.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
	key   aggregate.KeyFunc
	batch int
}

// PostgresOptions configures a Postgres sink.
type PostgresOptions struct {
	// DSN is the connection string.
	DSN string
	// Table is the fully qualified target table. Defaults to harvest_records.
	Table string
	// Key extracts the unique record key. Nil falls back to
	// sourceUnit/group/row-index, unique per run position.
	Key aggregate.KeyFunc
	// BatchSize bounds rows per pgx batch. Defaults to 500.
	BatchSize int
	// MaxConns bounds the connection pool.
	MaxConns int
}

// NewPostgresSink connects the pool and ensures the target table exists.
func NewPostgresSink(ctx context.Context, opts PostgresOptions) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = "harvest_records"
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}

	s := &PostgresSink{pool: pool, table: table, key: opts.Key, batch: batch}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			record_key  text PRIMARY KEY,
			unit_id     text NOT NULL,
			group_name  text NOT NULL,
			fields      jsonb NOT NULL,
			updated_at  timestamptz NOT NULL
		)`, s.table))
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// WriteUnit implements Sink.
func (s *PostgresSink) WriteUnit(ctx context.Context, res models.UnitResult) error {
	return s.upsert(ctx, res.Records)
}

// WriteRun implements Sink.
func (s *PostgresSink) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	return s.upsert(ctx, records)
}

func (s *PostgresSink) upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	inserted := 0

	// Fallback keys use the record's ordinal within its source unit so the
	// same unit written via WriteUnit and again via WriteRun maps to the
	// same rows.
	ordinals := make(map[string]int)

	for start := 0; start < len(records); start += s.batch {
		end := start + s.batch
		if end > len(records) {
			end = len(records)
		}

		b := &pgx.Batch{}
		for _, r := range records[start:end] {
			fields, err := json.Marshal(r.Fields)
			if err != nil {
				return fmt.Errorf("failed to marshal record fields: %w", err)
			}
			ordinal := ordinals[r.SourceUnit]
			ordinals[r.SourceUnit] = ordinal + 1
			b.Queue(fmt.Sprintf(`
				INSERT INTO %s (record_key, unit_id, group_name, fields, updated_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (record_key) DO UPDATE SET
					unit_id    = EXCLUDED.unit_id,
					group_name = EXCLUDED.group_name,
					fields     = EXCLUDED.fields,
					updated_at = EXCLUDED.updated_at`, s.table),
				s.recordKey(r, ordinal), r.SourceUnit, r.Group, fields, now)
		}

		br := s.pool.SendBatch(ctx, b)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch upsert failed: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("batch close failed: %w", err)
		}
		inserted += end - start
	}

	log.Debug().Int("rows", inserted).Str("table", s.table).Msg("Records upserted")
	return nil
}

func (s *PostgresSink) recordKey(r models.Record, i int) string {
	if s.key != nil {
		if k := s.key(r); k != "" {
			return k
		}
	}
	return fmt.Sprintf("%s/%s/%d", r.Group, r.SourceUnit, i)
}
