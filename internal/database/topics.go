package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/practice-queue/internal/models"
	"github.com/google/uuid"
)

// TopicRepository handles topic database operations
type TopicRepository struct {
	db querier
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db *DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// UpsertByName creates the topic if its name is new and fills in the stored row either way
func (r *TopicRepository) UpsertByName(ctx context.Context, topic *models.Topic) error {
	name := strings.TrimSpace(topic.Name)
	if name == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}

	query := `
		INSERT INTO topics (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING id, name, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, topic.ID, name, time.Now()).Scan(
		&topic.ID,
		&topic.Name,
		&topic.CreatedAt,
		&topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}

	return nil
}

// List returns all topics ordered by name
func (r *TopicRepository) List(ctx context.Context) ([]models.Topic, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at
		FROM topics
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer closeRows(rows)

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}

	return topics, nil
}

// Rename changes the name of topic id and returns the stored row
func (r *TopicRepository) Rename(ctx context.Context, id, name string) (*models.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("topic name cannot be empty")
	}

	query := `
		UPDATE topics SET name = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, created_at, updated_at
	`

	t := &models.Topic{}
	err := r.db.QueryRowContext(ctx, query, id, name, time.Now()).Scan(
		&t.ID,
		&t.Name,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename topic: %w", err)
	}

	return t, nil
}

// Delete removes topic id. Its problems are kept and lose their topic.
func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}

	return nil
}
