package db

import (
	"context"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/vendorledger/pkg/errors"
)

func txAttempts(retries int) int {
	if retries < 0 {
		return 1
	}
	return retries + 1
}

// WithTx runs fn inside a transaction. The transaction rolls back when fn
// errors or panics; panics are re-raised. Serialization failures and
// deadlocks re-run fn from the start, so fn must only touch tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= c.txAttempts; attempt++ {
		err = c.runTx(ctx, fn)
		if err == nil || !IsTransient(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (c *Client) runTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		tx.Rollback()
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	return nil
}

// IsTransient reports a Postgres conflict that succeeds when the whole
// transaction is retried.
func IsTransient(err error) bool {
	pgErr, ok := pkgerrors.PostgresError(err)
	if !ok {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	}
	return false
}
