package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

var schema = []string{
	`create table if not exists users (
		id uuid primary key default gen_random_uuid(),
		email text not null unique,
		display_name text not null,
		created_at timestamptz not null default now()
	)`,
	`create table if not exists user_credentials (
		user_id uuid primary key references users(id) on delete cascade,
		password_hash text not null
	)`,
	`create table if not exists portfolios (
		id uuid primary key default gen_random_uuid(),
		user_id uuid not null unique references users(id) on delete cascade,
		balance numeric not null,
		created_at timestamptz not null default now()
	)`,
	`create table if not exists positions (
		id uuid primary key,
		portfolio_id uuid not null references portfolios(id) on delete cascade,
		symbol text not null,
		margin numeric not null,
		leverage int not null,
		size numeric not null,
		entry_price numeric not null,
		is_long boolean not null,
		opened_at timestamptz not null,
		is_open boolean not null default true,
		closed_at timestamptz,
		close_price numeric,
		profit numeric
	)`,
	`create index if not exists positions_open_idx on positions (portfolio_id) where is_open`,
	`create index if not exists positions_open_symbol_idx on positions (symbol) where is_open`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
