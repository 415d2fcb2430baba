// Package mysql implements store.Store on MySQL for deployments where
// the institutional database already holds the usuarios and espacios
// directories. The schema is provisioned by operations; this backend
// never creates tables.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/iliyamo/campus-space-reservation/internal/model"
)

// Store is the MySQL-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open parses a mysql:// URL, connects and verifies the connection.
// parseTime=true makes DATETIME columns scan into time.Time, and
// loc=Local keeps them on campus wall-clock time, which is the
// timezone every reservation is expressed in.
func Open(rawURL string, log *zap.Logger) (*Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("mysql: database url: %w", err)
	}

	auth := u.User.Username()
	if pass, ok := u.User.Password(); ok && pass != "" {
		auth = fmt.Sprintf("%s:%s", auth, pass)
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "3306"
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return nil, fmt.Errorf("mysql: database url %q has no database name", rawURL)
	}

	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	log.Info("base MySQL conectada", zap.String("host", host), zap.String("database", name))
	return &Store{db: db, log: log}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
