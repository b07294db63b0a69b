package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/models"
	"github.com/google/uuid"
)

// AttemptRepository handles user-scoped attempt database operations
type AttemptRepository struct {
	db *DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptDetailQuery = `
	SELECT a.id, a.user_id, a.problem_id, a.date, a.solved_solo, a.time_spent, a.created_at, a.updated_at,
		COALESCE(p.title, ''), COALESCE(p.url, ''), COALESCE(p.difficulty, ''), COALESCE(t.name, '')
	FROM attempts a
	LEFT JOIN problems p ON p.id = a.problem_id
	LEFT JOIN topics t ON t.id = p.topic_id
`

func scanAttemptDetail(row rowScanner) (*models.AttemptDetail, error) {
	d := &models.AttemptDetail{}
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.ProblemID,
		&d.Date,
		&d.SolvedSolo,
		&d.TimeSpent,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.ProblemTitle,
		&d.ProblemURL,
		&d.ProblemDifficulty,
		&d.TopicName,
	)
	if err != nil {
		return nil, err
	}
	if d.TopicName == "" {
		d.TopicName = models.UnknownTopicName
	}
	return d, nil
}

// ListByUser returns the scheduling inputs for a user: all of their attempts, ordered by date
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, problem_id, date, solved_solo, time_spent, created_at, updated_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY date, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer closeRows(rows)

	var attempts []models.Attempt
	for rows.Next() {
		var a models.Attempt
		err := rows.Scan(&a.ID, &a.UserID, &a.ProblemID, &a.Date, &a.SolvedSolo, &a.TimeSpent, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// ListDetailedByUser returns a user's attempts joined with problem display fields, ordered by date
func (r *AttemptRepository) ListDetailedByUser(ctx context.Context, userID uuid.UUID) ([]models.AttemptDetail, error) {
	rows, err := r.db.QueryContext(ctx, attemptDetailQuery+`
		WHERE a.user_id = $1
		ORDER BY a.date, a.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer closeRows(rows)

	details := make([]models.AttemptDetail, 0)
	for rows.Next() {
		d, err := scanAttemptDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return details, nil
}

// GetDetail retrieves one of the user's attempts with problem display fields
func (r *AttemptRepository) GetDetail(ctx context.Context, userID uuid.UUID, id string) (*models.AttemptDetail, error) {
	d, err := scanAttemptDetail(r.db.QueryRowContext(ctx, attemptDetailQuery+`
		WHERE a.id = $1 AND a.user_id = $2
	`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return d, nil
}

// Create inserts a new attempt. A missing ID is generated.
func (r *AttemptRepository) Create(ctx context.Context, a *models.Attempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO attempts (id, user_id, problem_id, date, solved_solo, time_spent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		a.ID,
		a.UserID,
		a.ProblemID,
		a.Date,
		a.SolvedSolo,
		a.TimeSpent,
		time.Now(),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	return nil
}

// Update rewrites an attempt owned by a.UserID. Attempts of other users are reported as not found.
func (r *AttemptRepository) Update(ctx context.Context, a *models.Attempt) error {
	query := `
		UPDATE attempts
		SET problem_id = $3, date = $4, solved_solo = $5, time_spent = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		a.ID,
		a.UserID,
		a.ProblemID,
		a.Date,
		a.SolvedSolo,
		a.TimeSpent,
		time.Now(),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("attempt %s: %w", a.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	return nil
}

// Delete removes one of the user's attempts
func (r *AttemptRepository) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM attempts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attempt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListUserIDsActiveSince returns the users with at least one attempt dated at or after since
func (r *AttemptRepository) ListUserIDsActiveSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT user_id
		FROM attempts
		WHERE date >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer closeRows(rows)

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return userIDs, nil
}
