package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
)

// TxFn is the unit of work run by InTransaction. Store implementations bind
// to tx through their WithTx method.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// InTransaction runs fn in a transaction labelled name for logging.
//
// The transaction commits only when fn returns nil. An error from fn is
// returned as is after rollback so callers can still match sentinels such
// as ErrEmailExists; a failed rollback is joined onto it. A panic in fn rolls
// back and is re-raised.
func InTransaction(ctx context.Context, db *sql.DB, name string, fn TxFn) error {
	log := logger.FromContext(ctx).With(slog.String("tx", name))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("begin failed", slog.String("error", err.Error()))
		return fmt.Errorf("begin %s: %w", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("rollback after panic failed",
					slog.String("error", rbErr.Error()), slog.Any("panic", p))
			}
			// ALLOW-PANIC: re-raise after rollback
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("rollback failed",
				slog.String("error", rbErr.Error()), slog.String("cause", err.Error()))
			return errors.Join(err, fmt.Errorf("rollback %s: %w", name, rbErr))
		}
		log.Debug("rolled back", slog.String("cause", err.Error()))
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("commit failed", slog.String("error", err.Error()))
		return fmt.Errorf("commit %s: %w", name, err)
	}
	log.Debug("committed")
	return nil
}
