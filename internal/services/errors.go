package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateIdentity reports that an attendee with the same normalized email exists.
	ErrDuplicateIdentity = errors.New("attendee store: duplicate identity")
	// ErrDuplicateCode reports a collision on the generated redemption code.
	ErrDuplicateCode = errors.New("attendee store: duplicate code")
	// ErrAttendeeNotFound is returned when no attendee matches the lookup.
	ErrAttendeeNotFound = errors.New("attendee store: attendee not found")

	// ErrDuplicateRegistration rejects a second registration for the same email.
	ErrDuplicateRegistration = errors.New("registration: email already registered")
	// ErrIssuanceFailed wraps any failure to persist a freshly issued code.
	ErrIssuanceFailed = errors.New("registration: code issuance failed")

	// ErrCodeRequired is returned when the scanned input is empty.
	ErrCodeRequired = errors.New("redemption: code is required")
	// ErrStorageUnavailable wraps store failures during validation.
	ErrStorageUnavailable = errors.New("redemption: storage unavailable")

	// ErrDispatchFailed marks an undeliverable confirmation email.
	ErrDispatchFailed = errors.New("dispatch: delivery failed")
)

// isUniqueConstraintError detects uniqueness violations across the supported drivers.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint failed") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
