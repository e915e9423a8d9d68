// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"buffonomics/internal/observability"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// instrument starts a repository span and a latency timer. Call the returned
// function with the operation's error when done.
func instrument(ctx context.Context, method, table string) (context.Context, func(error)) {
	stop := observability.TrackQuery(method, table)
	ctx, span := observability.StartRepositorySpan(ctx, method, table)
	return ctx, func(err error) {
		stop()
		observability.EndSpan(span, err)
	}
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505, SQLite "UNIQUE constraint failed"
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
