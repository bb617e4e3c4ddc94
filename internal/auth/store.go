// Package auth stores user credentials and checks logins. Failed
// logins are indistinguishable between unknown users and wrong
// passwords, in both message and timing.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrInvalidCredentials is the uniform rejection for any failed
	// login. Callers must not distinguish causes.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists is returned when creating a duplicate username.
	ErrUserExists = errors.New("user already exists")
)

// User is an authenticated account.
type User struct {
	Username string
}

// Store is a SQLite-backed credential store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to auth database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate auth database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser stores a new account with a freshly hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, hash,
	)
	if err != nil {
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", username,
		).Scan(&exists)
		if checkErr == nil && exists {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Authenticate checks a username/password pair. The password hash is
// always verified, against a dummy hash when the user is unknown, so
// response timing does not reveal which accounts exist.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	stored := dummyHash
	found := false

	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", username,
	).Scan(&hash)
	switch {
	case err == nil:
		stored = hash
		found = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := verifyPassword(password, stored)
	if err != nil || !ok || !found {
		return nil, ErrInvalidCredentials
	}
	return &User{Username: username}, nil
}
