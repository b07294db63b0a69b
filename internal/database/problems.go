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

// ProblemRepository handles problem catalog database operations
type ProblemRepository struct {
	db querier
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *DB) *ProblemRepository {
	return &ProblemRepository{db: db}
}

const problemColumns = `
	p.id, p.title, p.url, p.difficulty, COALESCE(p.topic_id, ''), COALESCE(t.name, '')
`

func scanProblem(row rowScanner) (*models.Problem, error) {
	p := &models.Problem{}
	if err := row.Scan(&p.ID, &p.Title, &p.URL, &p.Difficulty, &p.TopicID, &p.TopicName); err != nil {
		return nil, err
	}
	if p.TopicName == "" {
		p.TopicName = models.UnknownTopicName
	}
	return p, nil
}

// List returns every problem in the catalog with its topic name, ordered by id
func (r *ProblemRepository) List(ctx context.Context) ([]models.Problem, error) {
	query := `SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN topics t ON t.id = p.topic_id
		ORDER BY p.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer closeRows(rows)

	problems := make([]models.Problem, 0)
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		problems = append(problems, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating problems: %w", err)
	}

	return problems, nil
}

// GetByID retrieves one problem with its topic name
func (r *ProblemRepository) GetByID(ctx context.Context, id string) (*models.Problem, error) {
	query := `SELECT ` + problemColumns + `
		FROM problems p
		LEFT JOIN topics t ON t.id = p.topic_id
		WHERE p.id = $1
	`

	p, err := scanProblem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("problem %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get problem: %w", err)
	}
	return p, nil
}

// UpsertByURL inserts a problem or updates the one sharing its URL.
// A missing ID is generated; on conflict the stored ID is kept and written back to p.
func (r *ProblemRepository) UpsertByURL(ctx context.Context, p *models.Problem) error {
	if !p.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q for problem %s", p.Difficulty, p.URL)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO problems (id, title, url, topic_id, difficulty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			topic_id = EXCLUDED.topic_id,
			difficulty = EXCLUDED.difficulty,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		p.ID,
		p.Title,
		p.URL,
		nullableTopic(p.TopicID),
		p.Difficulty,
		time.Now(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert problem: %w", err)
	}

	return nil
}

func nullableTopic(topicID string) sql.NullString {
	if topicID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: topicID, Valid: true}
}

// Create inserts a new problem. A missing ID is generated and written back to p.
func (r *ProblemRepository) Create(ctx context.Context, p *models.Problem) error {
	if !p.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q for problem %s", p.Difficulty, p.URL)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `
		INSERT INTO problems (id, title, url, topic_id, difficulty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Title,
		p.URL,
		nullableTopic(p.TopicID),
		p.Difficulty,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create problem: %w", err)
	}

	return nil
}

// Update rewrites the title, URL, topic and difficulty of problem p.ID
func (r *ProblemRepository) Update(ctx context.Context, p *models.Problem) error {
	if !p.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty %q for problem %s", p.Difficulty, p.ID)
	}

	query := `
		UPDATE problems
		SET title = $2, url = $3, topic_id = $4, difficulty = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Title,
		p.URL,
		nullableTopic(p.TopicID),
		p.Difficulty,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update problem: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("problem %s: %w", p.ID, ErrNotFound)
	}

	return nil
}

// Delete removes problem id together with every attempt recorded on it
func (r *ProblemRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete problem: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("problem %s: %w", id, ErrNotFound)
	}

	return nil
}
