package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings for opening the relational store.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Connect opens a connection pool and verifies it with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

const (
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeInvalidTextRepresentation = "22P02"
)

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

// isUUID reports whether id can name a row. Ids are UUID columns, so anything
// else matches nothing and is answered without a round trip.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
