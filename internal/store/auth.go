package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"
)

// CreateUser provisions one identity. Email must already be normalized.
func (s *Store) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, fmt.Errorf("user is required")
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(user.PasswordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, specialization, hospital, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.Email,
		user.PasswordHash,
		nullIfEmpty(user.Name),
		nullIfEmpty(user.Specialization),
		nullIfEmpty(user.Hospital),
		formatTime(createdAt),
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := *user
	created.ID = id
	created.CreatedAt = createdAt
	return &created, nil
}

// GetUserByEmail returns a user by normalized email, or nil when absent.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, specialization, hospital, created_at
		FROM users WHERE email = ? LIMIT 1
	`, email)
	return scanUser(row)
}

// GetUserByID returns a user by id, or nil when absent.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, specialization, hospital, created_at
		FROM users WHERE id = ? LIMIT 1
	`, id)
	return scanUser(row)
}

// UserExists reports whether an identity with the given id exists.
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateUserProfile overwrites the editable profile fields and returns the
// stored user.
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, name, specialization, hospital string) (*models.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, specialization = ?, hospital = ? WHERE id = ?
	`,
		nullIfEmpty(name),
		nullIfEmpty(specialization),
		nullIfEmpty(hospital),
		id,
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetUserByID(ctx, id)
}

// UpdateUserPassword replaces the stored password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("password hash is required")
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// CreateSession stores a hashed bearer token with an expiry.
func (s *Store) CreateSession(ctx context.Context, userID int64, tokenHash string, expiresAt, now time.Time) error {
	if strings.TrimSpace(tokenHash) == "" {
		return fmt.Errorf("token hash is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, tokenHash, userID, formatTime(expiresAt), formatTime(now))
	return err
}

// GetUserBySessionTokenHash resolves an unexpired session to its user.
// Returns nil when the token is unknown or expired.
func (s *Store) GetUserBySessionTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.name, u.specialization, u.hospital, u.created_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ? AND s.expires_at > ?
		LIMIT 1
	`, tokenHash, formatTime(now))
	return scanUser(row)
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user           models.User
		name           sql.NullString
		specialization sql.NullString
		hospital       sql.NullString
		createdAt      string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &name, &specialization, &hospital, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Name = name.String
	user.Specialization = specialization.String
	user.Hospital = hospital.String

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	user.CreatedAt = created

	return &user, nil
}
