// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema creates the members table used by the Postgres store.
const Schema = `
	CREATE TABLE IF NOT EXISTS members (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		phone      TEXT NOT NULL DEFAULT '',
		age        INT NOT NULL,
		category   TEXT NOT NULL,
		level      TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// postgresStore implements Store on top of PostgreSQL.
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a member store backed by db.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// Migrate creates the members table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create members table: %w", err)
	}
	return nil
}

// FindByID retrieves a member by their ID.
func (s *postgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	query := `
		SELECT id, name, email, phone, age, category, level, status, created_at
		FROM members
		WHERE id = $1
	`
	member := &Member{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.Phone,
		&member.Age,
		&member.Category,
		&member.Level,
		&member.Status,
		&member.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("member with ID %s: %w", id, ErrMemberNotFound)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// FindAll lists every member in registration order.
func (s *postgresStore) FindAll(ctx context.Context) ([]Member, error) {
	query := `
		SELECT id, name, email, phone, age, category, level, status, created_at
		FROM members
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Age, &m.Category, &m.Level, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

// Save inserts the member or updates the existing row with the same id.
func (s *postgresStore) Save(ctx context.Context, m Member) error {
	query := `
		INSERT INTO members (id, name, email, phone, age, category, level, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    age = EXCLUDED.age,
		    category = EXCLUDED.category,
		    level = EXCLUDED.level,
		    status = EXCLUDED.status
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Name, m.Email, m.Phone, m.Age, m.Category, m.Level, m.Status, m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%s: %w", m.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// Delete removes a member row.
func (s *postgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member with ID %s: %w", id, ErrMemberNotFound)
	}
	return nil
}
