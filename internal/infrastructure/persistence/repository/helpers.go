package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// executor returns the transaction in ctx or the plain connection pool
func executor(ctx context.Context, db *sql.DB) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, db)
}

// inTx joins the caller's transaction or opens one for the duration of fn
func inTx(ctx context.Context, db *sql.DB, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if sqlite.TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return sqlite.NewDB(db, logger).WithTransaction(ctx, fn)
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
