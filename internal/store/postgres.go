package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgarridos/babel/internal/config"
	"github.com/mgarridos/babel/internal/core"
)

const (
	recordRoomState  = "roomState"
	recordAgentState = "agentState"
)

// Postgres keeps room records in a single table keyed by (room_name, record).
type Postgres struct {
	pool *pgxpool.Pool
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// Connect creates the pool, verifies the connection and ensures the schema.
func Connect(ctx context.Context, cfg config.DBConfig) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS room_records (
			room_name  TEXT        NOT NULL,
			record     TEXT        NOT NULL,
			data       JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (room_name, record)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) get(ctx context.Context, room, record string, out any) error {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM room_records WHERE room_name = $1 AND record = $2`,
		room, record,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // zero value stays in place
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", record, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", record, err)
	}
	return nil
}

func (p *Postgres) put(ctx context.Context, room, record string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", record, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO room_records (room_name, record, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (room_name, record)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		room, record, raw)
	if err != nil {
		return fmt.Errorf("put %s: %w", record, err)
	}
	return nil
}

func (p *Postgres) RoomState(ctx context.Context, room string) (core.RoomState, error) {
	var s core.RoomState
	err := p.get(ctx, room, recordRoomState, &s)
	return s, err
}

func (p *Postgres) PutRoomState(ctx context.Context, room string, s core.RoomState) error {
	return p.put(ctx, room, recordRoomState, s)
}

func (p *Postgres) AgentState(ctx context.Context, room string) (core.AgentState, error) {
	var a core.AgentState
	err := p.get(ctx, room, recordAgentState, &a)
	return a, err
}

func (p *Postgres) PutAgentState(ctx context.Context, room string, a core.AgentState) error {
	return p.put(ctx, room, recordAgentState, a)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
