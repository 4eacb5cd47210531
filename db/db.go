// Package db holds the small database surface that monet apps share.
//
// Apps are handed a DB rather than a concrete *sqlx.DB so that tests can wrap
// it (see monarch's counting wrapper) and so that a transaction can stand in
// for the connection where only reads and writes are needed.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// A Getter can fetch a single row into dest.
type Getter interface {
	Get(dest interface{}, query string, args ...interface{}) error
}

// A Selecter can fetch many rows into dest.
type Selecter interface {
	Select(dest interface{}, query string, args ...interface{}) error
}

// An Execer runs statements that do not return rows.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// DB is satisfied by both *sqlx.DB and *sqlx.Tx.
type DB interface {
	Getter
	Selecter
	Execer
}

// A TxStarter can begin a transaction.
type TxStarter interface {
	Beginx() (*sqlx.Tx, error)
}

// Open connects to the sqlite database at uri and applies the pragmas monet
// expects.  Use ":memory:" for a throwaway database.
func Open(uri string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", uri, err)
	}
	// sqlite serializes writers anyway; a single conn avoids "database is locked"
	// and keeps :memory: databases from fragmenting across connections.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Debug("opened database", "uri", uri)
	return conn, nil
}

// With runs fn inside a transaction on db.  If db cannot start transactions
// (eg. it is already a *sqlx.Tx), fn is not run and an error is returned.
// The transaction is committed if fn returns nil and rolled back otherwise.
func With(db DB, fn func(tx *sqlx.Tx) error) error {
	starter, ok := db.(TxStarter)
	if !ok {
		return fmt.Errorf("db %T cannot begin transactions", db)
	}
	tx, err := starter.Beginx()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			slog.Error("rolling back", "err", rerr)
		}
		return err
	}
	return tx.Commit()
}
