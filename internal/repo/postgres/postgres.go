package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/repo"
)

var _ repo.StateStore = (*Store)(nil)

const Schema = `
CREATE TABLE IF NOT EXISTS check_states (
  project    TEXT NOT NULL,
  name       TEXT NOT NULL,
  phase      TEXT NOT NULL,
  success    BOOLEAN NOT NULL,
  data       JSONB NULL,
  duration   DOUBLE PRECISION NOT NULL,
  datetime   TIMESTAMPTZ NULL,
  manual     BOOLEAN NOT NULL DEFAULT false,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (project, name)
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Save upserts the state; a check only ever has one row.
func (s *Store) Save(ctx context.Context, st domain.State) error {
	var (
		success  bool
		data     *string
		duration float64
		datetime *time.Time
	)
	if st.Result != nil {
		success = st.Result.Success
		duration = st.Result.Duration
		datetime = st.Result.Datetime
		b, err := json.Marshal(st.Result.Data)
		if err != nil {
			return fmt.Errorf("encode data: %w", err)
		}
		v := string(b)
		data = &v
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO check_states (project, name, phase, success, data, duration, datetime, manual, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (project, name) DO UPDATE SET
  phase = EXCLUDED.phase, success = EXCLUDED.success, data = EXCLUDED.data,
  duration = EXCLUDED.duration, datetime = EXCLUDED.datetime,
  manual = EXCLUDED.manual, updated_at = EXCLUDED.updated_at`,
		st.Key.Project, st.Key.Name, string(st.Phase), success, data, duration, datetime, st.Manual, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

const selectStates = `
SELECT project, name, phase, success, data, duration, datetime, manual, updated_at
  FROM check_states`

func (s *Store) Get(ctx context.Context, key domain.Key) (*domain.State, error) {
	row := s.pool.QueryRow(ctx, selectStates+` WHERE project = $1 AND name = $2`, key.Project, key.Name)
	st, err := scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}

func (s *Store) List(ctx context.Context) ([]domain.State, error) {
	rows, err := s.pool.Query(ctx, selectStates+` ORDER BY project, name`)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []domain.State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (*domain.State, error) {
	var (
		st    domain.State
		phase string
		res   domain.Result
		data  []byte
	)
	err := row.Scan(&st.Key.Project, &st.Key.Name, &phase, &res.Success, &data,
		&res.Duration, &res.Datetime, &st.Manual, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan state: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &res.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	st.Phase = domain.Phase(phase)
	st.Result = &res
	return &st, nil
}
