package handlers

import (
	"context"
	"net/http"
	"time"

	logpkg "github.com/benvon/practice-queue/internal/logger"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Queue scopes accepted by GET /task-queue
const (
	ScopeActive = "active"
	ScopeFull   = "full"
)

// QueueService produces a user's scheduling result
type QueueService interface {
	ActiveQueue(ctx context.Context, userID uuid.UUID) (*scheduler.Result, error)
}

// TaskQueueHandler serves the caller's practice queue
type TaskQueueHandler struct {
	queue  QueueService
	logger *zap.Logger
}

// NewTaskQueueHandler creates a new task queue handler
func NewTaskQueueHandler(queue QueueService, logger *zap.Logger) *TaskQueueHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskQueueHandler{queue: queue, logger: logger}
}

// RegisterRoutes registers task queue routes.
// The router should already have the /task-queue prefix.
func (h *TaskQueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetTaskQueue).Methods(http.MethodGet)
}

// TaskQueueItemResponse is a queue item with its reason flattened for display
type TaskQueueItemResponse struct {
	Problem             models.Problem  `json:"problem"`
	Priority            int             `json:"priority"`
	Reason              string          `json:"reason"`
	ReasonKind          string          `json:"reason_kind"`
	ReasonDays          int             `json:"reason_days"`
	LastAttempt         *models.Attempt `json:"last_attempt,omitempty"`
	SolvedCount         int             `json:"solved_count"`
	NextReviewDate      *time.Time      `json:"next_review_date,omitempty"`
	DaysSinceLastSolved *int            `json:"days_since_last_solved,omitempty"`
}

// TaskQueueResponse is the body of GET /task-queue
type TaskQueueResponse struct {
	TaskQueue   []TaskQueueItemResponse `json:"taskQueue"`
	Stats       scheduler.Stats         `json:"stats"`
	Scope       string                  `json:"scope"`
	Day         string                  `json:"day"`
	GeneratedAt time.Time               `json:"generated_at"`
}

func toItemResponses(items []scheduler.TaskQueueItem) []TaskQueueItemResponse {
	out := make([]TaskQueueItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, TaskQueueItemResponse{
			Problem:             item.Problem,
			Priority:            item.Priority,
			Reason:              item.Reason.String(),
			ReasonKind:          item.Reason.Kind.String(),
			ReasonDays:          item.Reason.Days,
			LastAttempt:         item.LastAttempt,
			SolvedCount:         item.SolvedCount,
			NextReviewDate:      item.NextReviewDate,
			DaysSinceLastSolved: item.DaysSinceLastSolved,
		})
	}
	return out
}

// GetTaskQueue returns the active queue with its stats, or the full ranked queue with ?scope=full
func (h *TaskQueueHandler) GetTaskQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = ScopeActive
	}
	if scope != ScopeActive && scope != ScopeFull {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "scope must be one of active, full")
		return
	}

	result, err := h.queue.ActiveQueue(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed_to_build_task_queue",
			zap.Error(err),
			zap.String("user_id", logpkg.SanitizeUserID(userID.String())),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to build task queue")
		return
	}

	items, stats := result.Active, result.Stats
	if scope == ScopeFull {
		items, stats = result.Full, scheduler.Summarize(result.Full)
	}

	h.logger.Debug("task_queue_served",
		zap.String("user_id", logpkg.SanitizeUserID(userID.String())),
		zap.String("scope", scope),
		zap.Int("items", len(items)),
	)

	respondJSON(w, http.StatusOK, TaskQueueResponse{
		TaskQueue:   toItemResponses(items),
		Stats:       stats,
		Scope:       scope,
		Day:         result.Day,
		GeneratedAt: result.GeneratedAt,
	})
}
