package database

import (
	"context"
	"time"

	"github.com/benvon/practice-queue/internal/models"
	"github.com/google/uuid"
)

// ProblemRepositoryInterface defines the catalog reads used by the API and the scheduler
type ProblemRepositoryInterface interface {
	List(ctx context.Context) ([]models.Problem, error)
	GetByID(ctx context.Context, id string) (*models.Problem, error)
}

// AttemptRepositoryInterface defines user-scoped attempt operations.
// This interface enables mock implementations in handler and service tests.
type AttemptRepositoryInterface interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Attempt, error)
	ListDetailedByUser(ctx context.Context, userID uuid.UUID) ([]models.AttemptDetail, error)
	GetDetail(ctx context.Context, userID uuid.UUID, id string) (*models.AttemptDetail, error)
	Create(ctx context.Context, attempt *models.Attempt) error
	Update(ctx context.Context, attempt *models.Attempt) error
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	ListUserIDsActiveSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// UserRepositoryInterface defines the user lookups needed for authentication
type UserRepositoryInterface interface {
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// ProblemStoreInterface adds the problem management used by the admin CLI
type ProblemStoreInterface interface {
	ProblemRepositoryInterface
	Create(ctx context.Context, problem *models.Problem) error
	Update(ctx context.Context, problem *models.Problem) error
	Delete(ctx context.Context, id string) error
}

// TopicStoreInterface defines the topic management used by the admin CLI
type TopicStoreInterface interface {
	List(ctx context.Context) ([]models.Topic, error)
	UpsertByName(ctx context.Context, topic *models.Topic) error
	Rename(ctx context.Context, id, name string) (*models.Topic, error)
	Delete(ctx context.Context, id string) error
}

// CatalogWriterInterface defines the writes performed by a catalog import
type CatalogWriterInterface interface {
	UpsertTopic(ctx context.Context, topic *models.Topic) error
	UpsertProblem(ctx context.Context, problem *models.Problem) error
}

// CatalogStoreInterface runs a catalog import atomically
type CatalogStoreInterface interface {
	Transact(ctx context.Context, fn func(w CatalogWriterInterface) error) error
}

// Ensure concrete types implement the interfaces
var (
	_ ProblemRepositoryInterface = (*ProblemRepository)(nil)
	_ ProblemStoreInterface      = (*ProblemRepository)(nil)
	_ TopicStoreInterface        = (*TopicRepository)(nil)
	_ AttemptRepositoryInterface = (*AttemptRepository)(nil)
	_ UserRepositoryInterface    = (*UserRepository)(nil)
	_ CatalogWriterInterface     = (*catalogWriter)(nil)
	_ CatalogStoreInterface      = (*Catalog)(nil)
)
