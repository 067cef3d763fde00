package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bulksend/bulksend/internal/store"
)

// notFound wraps store.ErrNotFound with a descriptive message.
func notFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, store.ErrNotFound)
}

// isNoRows checks whether the error is pgx.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
