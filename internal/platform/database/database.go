package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"signalcrm/internal/platform/config"
)

// Store wraps the shared *sql.DB so handlers that only need a ping or a
// one-off query take a narrow dependency instead of the raw handle.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func New(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL
	if len(dsn) > 5 && dsn[:5] == "file:" {
		dsn = dsn[5:]
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
