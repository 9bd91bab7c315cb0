package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/instalitre/internal/apperror"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	code := pgCode(err)
	switch {
	case strings.HasPrefix(code, "08"): // connection exception
		return true
	case strings.HasPrefix(code, "28"): // invalid authorization
		return true
	case code == "53300", code == "57P01", code == "57P03": // too many connections, shutdown, cannot connect now
		return true
	}
	return false
}

func classify(op string, err error) error {
	if isUnavailable(err) {
		return apperror.StoreUnavailable(op, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
