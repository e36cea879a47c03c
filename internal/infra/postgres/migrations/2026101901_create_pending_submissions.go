package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const createPendingSubmissionsSQL = `
CREATE TABLE IF NOT EXISTS pending_submissions (
	id          TEXT PRIMARY KEY,
	quiz_id     TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	payload     JSONB NOT NULL,
	auto_submit BOOLEAN NOT NULL DEFAULT FALSE,
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pending_submissions_created_at_idx ON pending_submissions (created_at);
CREATE INDEX IF NOT EXISTS pending_submissions_quiz_user_idx ON pending_submissions (quiz_id, user_id);
`

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createPendingSubmissionsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS pending_submissions`)
			return err
		},
	)
}
