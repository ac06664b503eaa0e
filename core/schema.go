package core

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog/log"

	"event-service/pkg/resources"
)

//go:embed schema.sql
var schemaSQL string

const schemaLockId int64 = 730144201

// ApplySchema creates the events table when missing. Concurrent instances serialize on an
// advisory lock held for the duration of the transaction.
func ApplySchema(ctx context.Context, db resources.DBInstance) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}

	_, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockId)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to acquire schema lock: %w", err)
	}

	_, err = tx.Exec(ctx, schemaSQL)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", "schema").Msg("schema applied")

	return nil
}
