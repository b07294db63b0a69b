package database

import (
	"context"
	"database/sql"

	"github.com/benvon/practice-queue/internal/models"
)

// Catalog runs catalog imports, each inside one transaction
type Catalog struct {
	db *DB
}

// NewCatalog creates a catalog store over db
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// Transact runs fn with a writer bound to a new transaction. Every write made through it is
// committed when fn returns nil and discarded otherwise.
func (c *Catalog) Transact(ctx context.Context, fn func(w CatalogWriterInterface) error) error {
	return c.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&catalogWriter{
			topics:   &TopicRepository{db: tx},
			problems: &ProblemRepository{db: tx},
		})
	})
}

type catalogWriter struct {
	topics   *TopicRepository
	problems *ProblemRepository
}

func (w *catalogWriter) UpsertTopic(ctx context.Context, topic *models.Topic) error {
	return w.topics.UpsertByName(ctx, topic)
}

func (w *catalogWriter) UpsertProblem(ctx context.Context, problem *models.Problem) error {
	return w.problems.UpsertByURL(ctx, problem)
}
