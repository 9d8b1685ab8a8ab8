package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the wormhole store (PostgreSQL).
var Migrations = migrate.NewGroup("wormhole")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_wormhole_beams",
			Version: "20250601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wormhole_beams (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL UNIQUE,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    admin_id         BIGINT NOT NULL DEFAULT 0,
    anonymity        TEXT NOT NULL DEFAULT 'guild',
    replace_original BOOLEAN NOT NULL DEFAULT FALSE,
    timeout          INTEGER NOT NULL DEFAULT 60,
    max_length       INTEGER NOT NULL DEFAULT 1024,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS wormhole_beams`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wormhole_wormholes",
			Version: "20250601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wormhole_wormholes (
    id          TEXT PRIMARY KEY,
    channel_id  TEXT NOT NULL UNIQUE,
    beam        TEXT NOT NULL,
    admin_id    BIGINT NOT NULL DEFAULT 0,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    readonly    BOOLEAN NOT NULL DEFAULT FALSE,
    logo        TEXT NOT NULL DEFAULT '',
    messages    BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wormhole_wormholes_beam ON wormhole_wormholes (beam, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS wormhole_wormholes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wormhole_users",
			Version: "20250601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wormhole_users (
    id          TEXT PRIMARY KEY,
    account_id  BIGINT NOT NULL UNIQUE,
    nickname    TEXT NOT NULL UNIQUE,
    home_id     TEXT NOT NULL DEFAULT '',
    readonly    BOOLEAN NOT NULL DEFAULT FALSE,
    restricted  BOOLEAN NOT NULL DEFAULT FALSE,
    mod         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS wormhole_users`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_wormhole_failures",
			Version: "20250601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS wormhole_failures (
    id          TEXT PRIMARY KEY,
    op          TEXT NOT NULL,
    beam        TEXT NOT NULL DEFAULT '',
    channel_id  TEXT NOT NULL DEFAULT '',
    source_id   TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    failed_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wormhole_failures_failed ON wormhole_failures (failed_at);
CREATE INDEX IF NOT EXISTS idx_wormhole_failures_beam ON wormhole_failures (beam, failed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS wormhole_failures`)
				return err
			},
		},
	)
}
