package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Startup load of open tickets per server
			CREATE INDEX IF NOT EXISTS idx_tickets_server_open
			ON tickets (server_id, created_at)
			WHERE is_closed = false;

			-- Per-user ticket limit checks
			CREATE INDEX IF NOT EXISTS idx_tickets_server_owner
			ON tickets (server_id, owner_id, is_closed);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create ticket indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_tickets_server_open;
			DROP INDEX IF EXISTS idx_tickets_server_owner;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop ticket indexes: %w", err)
		}

		return nil
	})
}
