package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/damoang/angple-forum/internal/common"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL error numbers worth retrying
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// retry policy for transient failures
var (
	txInitialInterval = 20 * time.Millisecond
	txMaxInterval     = 500 * time.Millisecond
	txMaxRetries      = uint64(3)
)

// IsTransient reports whether err is a connectivity or lock-contention failure
// that is safe to retry with a fresh transaction
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Transact runs fn inside one transaction. Transient failures roll back and
// retry the whole function with exponential backoff; after the retries are
// used up the error is reported as common.ErrUnavailable.
func Transact(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = txInitialInterval
	b.MaxInterval = txMaxInterval

	attempt := 0
	op := func() error {
		attempt++
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		pkglogger.GetLogger().Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("transaction failed, retrying")
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, txMaxRetries), ctx))
	if err != nil && IsTransient(err) {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return err
}
