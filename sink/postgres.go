package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecociel/beacon/domain"
	"github.com/ecociel/beacon/flatten"
)

// Postgres inserts one row per snapshot into telemetry_record. Expected
// schema:
//
//	CREATE TABLE telemetry_record (
//	    id          BIGSERIAL PRIMARY KEY,
//	    topic       TEXT        NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL,
//	    fields      JSONB       NOT NULL
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Record(ctx context.Context, topic string, fields []domain.Field) error {
	payload, err := flatten.MarshalFields(fields)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", topic, err)
	}
	const q = `
        INSERT INTO telemetry_record
          (topic, recorded_at, fields)
        VALUES
          ($1, $2, $3)
        `
	if _, err := s.pool.Exec(ctx, q, topic, time.Now(), payload); err != nil {
		return fmt.Errorf("insert record for %s: %w", topic, err)
	}
	return nil
}
