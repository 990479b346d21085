package eventstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pressly/goose/v3"

	"orchestrator/internal/errs"
	"orchestrator/internal/eventbus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresConfig holds connection parameters, shaped like PedroCLI's
// database.Config.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// PostgresStore is a Store backed by a Postgres events/snapshots schema
// managed by goose migrations, grounded on pkg/database/database.go.
type PostgresStore struct {
	db       *sql.DB
	migrated bool
}

// NewPostgresStore opens a pooled connection and verifies it with a ping.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "open postgres event store", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Internal, "ping postgres event store", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate applies pending goose migrations exactly once.
func (p *PostgresStore) Migrate(_ context.Context) error {
	if p.migrated {
		return nil
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errs.Wrap(errs.Internal, "set goose dialect", err)
	}
	if err := goose.Up(p.db, "migrations"); err != nil {
		return errs.Wrap(errs.Internal, "run event store migrations", err)
	}
	p.migrated = true
	return nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Append(ctx context.Context, ev eventbus.Event) error {
	return p.AppendBatch(ctx, []eventbus.Event{ev})
}

func (p *PostgresStore) AppendBatch(ctx context.Context, evs []eventbus.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Internal, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
		INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, ev := range evs {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return errs.Wrap(errs.Internal, "marshal event data", err)
		}
		meta, err := json.Marshal(ev.Metadata)
		if err != nil {
			return errs.Wrap(errs.Internal, "marshal event metadata", err)
		}
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx, insert, ev.ID, ev.AggregateID, ev.AggregateType, ev.Type, data, meta, ev.Version, ev.Timestamp); err != nil {
			if isUniqueViolation(err) {
				return errs.Wrap(errs.Conflict, "duplicate event version for aggregate "+ev.AggregateID, err)
			}
			return errs.Wrap(errs.Internal, "insert event", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, "commit event batch", err)
	}
	return nil
}

func (p *PostgresStore) GetEvents(ctx context.Context, aggregateID string, fromVersion int64) ([]eventbus.Event, error) {
	const q = `
		SELECT id, aggregate_id, aggregate_type, event_type, data, metadata, version, created_at
		FROM events WHERE aggregate_id = $1 AND version > $2 ORDER BY version ASC`
	rows, err := p.db.QueryContext(ctx, q, aggregateID, fromVersion)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "query events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *PostgresStore) Query(ctx context.Context, filter Filter) ([]eventbus.Event, error) {
	q := `SELECT id, aggregate_id, aggregate_type, event_type, data, metadata, version, created_at FROM events WHERE version > $1`
	args := []interface{}{filter.FromVersion}
	if filter.AggregateType != "" {
		args = append(args, filter.AggregateType)
		q += fmt.Sprintf(" AND aggregate_type = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		q += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	q += " ORDER BY created_at ASC, version ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "query events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *PostgresStore) GetLatestVersion(ctx context.Context, aggregateID string) (int64, error) {
	const q = `SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1`
	var version int64
	if err := p.db.QueryRowContext(ctx, q, aggregateID).Scan(&version); err != nil {
		return 0, errs.Wrap(errs.Internal, "get latest version", err)
	}
	return version, nil
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal snapshot state", err)
	}
	const upsert = `
		INSERT INTO snapshots (aggregate_id, aggregate_type, version, state, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (aggregate_id) DO UPDATE SET aggregate_type = $2, version = $3, state = $4, created_at = $5`
	if _, err := p.db.ExecContext(ctx, upsert, snap.AggregateID, snap.AggregateType, snap.Version, state, snap.Timestamp); err != nil {
		return errs.Wrap(errs.Internal, "save snapshot", err)
	}
	return nil
}

func (p *PostgresStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	const q = `SELECT aggregate_id, aggregate_type, version, state, created_at FROM snapshots WHERE aggregate_id = $1`
	var snap Snapshot
	var state []byte
	err := p.db.QueryRowContext(ctx, q, aggregateID).Scan(&snap.AggregateID, &snap.AggregateType, &snap.Version, &state, &snap.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "get snapshot", err)
	}
	if err := json.Unmarshal(state, &snap.State); err != nil {
		return nil, errs.Wrap(errs.Internal, "unmarshal snapshot state", err)
	}
	return &snap, nil
}

func (p *PostgresStore) RebuildState(ctx context.Context, aggregateID string, reduce Reducer, initial map[string]interface{}) (map[string]interface{}, error) {
	state := initial
	fromVersion := int64(0)

	snap, err := p.GetSnapshot(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		state = snap.State
		fromVersion = snap.Version
	}

	events, err := p.GetEvents(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		state = reduce(state, ev)
	}
	return state, nil
}

func scanEvents(rows *sql.Rows) ([]eventbus.Event, error) {
	var out []eventbus.Event
	for rows.Next() {
		var ev eventbus.Event
		var data, meta []byte
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.AggregateType, &ev.Type, &data, &meta, &ev.Version, &ev.Timestamp); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan event row", err)
		}
		if err := json.Unmarshal(data, &ev.Data); err != nil {
			return nil, errs.Wrap(errs.Internal, "unmarshal event data", err)
		}
		if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
			return nil, errs.Wrap(errs.Internal, "unmarshal event metadata", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
