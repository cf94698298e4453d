package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/potchannel/potchannel/internal/channel"
)

// Postgres persists channel entries in a single table, one row per
// channel with the full record as jsonb. The ledger is the only
// writer, so row-level contention is not a concern; the store only
// needs durability.
type Postgres struct {
	ctx  context.Context
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id         BIGINT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgres connects a pool and ensures the schema exists. The
// context bounds every query the store issues; ledger operations are
// short and synchronous.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{ctx: ctx, pool: pool}, nil
}

func (p *Postgres) Get(id uint64) (*channel.Channel, error) {
	var raw []byte
	err := p.pool.QueryRow(p.ctx,
		`SELECT state FROM channels WHERE id=$1`, int64(id),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, channel.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load channel %d: %w", id, err)
	}
	var ch channel.Channel
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("decode channel %d: %w", id, err)
	}
	return &ch, nil
}

func (p *Postgres) Put(ch *channel.Channel) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode channel %d: %w", ch.ID, err)
	}
	_, err = p.pool.Exec(p.ctx, `
		INSERT INTO channels (id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET state=EXCLUDED.state, updated_at=now()
	`, int64(ch.ID), raw)
	if err != nil {
		return fmt.Errorf("store channel %d: %w", ch.ID, err)
	}
	return nil
}

func (p *Postgres) Delete(id uint64) error {
	if _, err := p.pool.Exec(p.ctx,
		`DELETE FROM channels WHERE id=$1`, int64(id)); err != nil {
		return fmt.Errorf("delete channel %d: %w", id, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
