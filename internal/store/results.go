package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"
)

// CreateResult inserts one analysis result and returns the generated id.
// Confidence must be within [0, 1] and the owning user must exist.
func (s *Store) CreateResult(ctx context.Context, result *models.AnalysisResult) (int64, error) {
	if result == nil {
		return 0, fmt.Errorf("result is required")
	}
	if result.UserID <= 0 {
		return 0, fmt.Errorf("user_id is required")
	}
	if result.Prediction == "" {
		return 0, fmt.Errorf("prediction is required")
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return 0, fmt.Errorf("confidence must be between 0 and 1, got %v", result.Confidence)
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO results (user_id, prediction, confidence, timestamp, original, binary, contours, overlay, is_normal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.UserID,
		result.Prediction,
		result.Confidence,
		result.Timestamp,
		nullIfEmpty(result.Original),
		nullIfEmpty(result.Binary),
		nullIfEmpty(result.Contours),
		nullIfEmpty(result.Overlay),
		boolToInt(result.IsNormal),
		formatTime(createdAt),
	)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	result.ID = id
	result.CreatedAt = createdAt
	return id, nil
}

// GetResult returns a result by id, or nil when it does not exist.
// Ownership is checked by the caller.
func (s *Store) GetResult(ctx context.Context, id int64) (*models.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, prediction, confidence, timestamp, original, binary, contours, overlay, is_normal, created_at
		FROM results WHERE id = ?
	`, id)
	return scanResult(row)
}

// ListResultsByUser returns all results owned by userID, newest first by the
// producer-supplied timestamp.
func (s *Store) ListResultsByUser(ctx context.Context, userID int64) ([]models.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, prediction, confidence, timestamp, original, binary, contours, overlay, is_normal, created_at
		FROM results WHERE user_id = ? ORDER BY timestamp DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.AnalysisResult
	for rows.Next() {
		result, err := scanResultRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// DeleteResult removes a result only when both id and owner match.
// The returned bool reports whether a row was actually removed; false means
// "not found or not yours" and does not distinguish the two.
func (s *Store) DeleteResult(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row *sql.Row) (*models.AnalysisResult, error) {
	result, err := scanResultRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return result, err
}

func scanResultRow(row rowScanner) (*models.AnalysisResult, error) {
	var (
		result    models.AnalysisResult
		original  sql.NullString
		binary    sql.NullString
		contours  sql.NullString
		overlay   sql.NullString
		isNormal  int
		createdAt string
	)
	err := row.Scan(
		&result.ID,
		&result.UserID,
		&result.Prediction,
		&result.Confidence,
		&result.Timestamp,
		&original,
		&binary,
		&contours,
		&overlay,
		&isNormal,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	result.Original = original.String
	result.Binary = binary.String
	result.Contours = contours.String
	result.Overlay = overlay.String
	result.IsNormal = isNormal == 1

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	result.CreatedAt = created

	return &result, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
