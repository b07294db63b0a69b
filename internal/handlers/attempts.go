package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/practice-queue/internal/database"
	logpkg "github.com/benvon/practice-queue/internal/logger"
	"github.com/benvon/practice-queue/internal/models"
	"github.com/benvon/practice-queue/internal/queue"
	"github.com/benvon/practice-queue/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxAttemptIDLength bounds the {id} path segment
const MaxAttemptIDLength = 64

// AttemptStore is the subset of the attempt repository used by the handler
type AttemptStore interface {
	ListDetailedByUser(ctx context.Context, userID uuid.UUID) ([]models.AttemptDetail, error)
	GetDetail(ctx context.Context, userID uuid.UUID, id string) (*models.AttemptDetail, error)
	Create(ctx context.Context, attempt *models.Attempt) error
	Update(ctx context.Context, attempt *models.Attempt) error
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

// ProblemFinder resolves the problem an attempt refers to
type ProblemFinder interface {
	GetByID(ctx context.Context, id string) (*models.Problem, error)
}

// ChangeNotifier is told when a user's attempts change so their queue can be recomputed
type ChangeNotifier interface {
	AttemptsChanged(ctx context.Context, userID uuid.UUID, trigger string) error
}

// AttemptsHandler handles attempt-related requests
type AttemptsHandler struct {
	attempts AttemptStore
	problems ProblemFinder
	notifier ChangeNotifier
	logger   *zap.Logger
}

// NewAttemptsHandler creates a new attempts handler. notifier may be nil.
func NewAttemptsHandler(attempts AttemptStore, problems ProblemFinder, notifier ChangeNotifier, logger *zap.Logger) *AttemptsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptsHandler{
		attempts: attempts,
		problems: problems,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterRoutes registers attempt routes.
// The router should already have the /attempts prefix.
func (h *AttemptsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListAttempts).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateAttempt).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetAttempt).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.UpdateAttempt).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.DeleteAttempt).Methods(http.MethodDelete)
}

// AttemptRequest is the body of POST and PUT requests.
// SolvedSolo is a pointer so an omitted value is rejected instead of read as false.
type AttemptRequest struct {
	ProblemID  string    `json:"problem_id" validate:"required,max=64"`
	Date       time.Time `json:"date" validate:"required"`
	SolvedSolo *bool     `json:"solved_solo" validate:"required"`
	TimeSpent  int       `json:"time_spent" validate:"gt=0,lte=1440"`
}

// parseAttemptRequest decodes and validates the body, answering the client on failure
func parseAttemptRequest(w http.ResponseWriter, r *http.Request) (*AttemptRequest, bool) {
	var req AttemptRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.ProblemID = validation.SanitizeText(req.ProblemID)
	if err := validation.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+err.Error())
		return nil, false
	}
	return &req, true
}

// attemptID reads and bounds the {id} path variable
func attemptID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if id == "" || len(id) > MaxAttemptIDLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid attempt ID")
		return "", false
	}
	return id, true
}

// problemExists answers 404 or 500 when the referenced problem cannot be used
func (h *AttemptsHandler) problemExists(w http.ResponseWriter, r *http.Request, problemID string) bool {
	_, err := h.problems.GetByID(r.Context(), problemID)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Problem not found")
		return false
	}
	if err != nil {
		h.logger.Error("failed_to_get_problem", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve problem")
		return false
	}
	return true
}

// changed notifies the queue layer. Failures are logged; the attempt write already succeeded.
func (h *AttemptsHandler) changed(ctx context.Context, userID uuid.UUID, trigger string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.AttemptsChanged(ctx, userID, trigger); err != nil {
		h.logger.Warn("failed_to_signal_queue_change",
			zap.Error(err),
			zap.String("user_id", logpkg.SanitizeUserID(userID.String())),
			zap.String("trigger", trigger),
		)
	}
}

// ListAttempts lists the caller's attempts ordered by date
func (h *AttemptsHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	attempts, err := h.attempts.ListDetailedByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed_to_list_attempts", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve attempts")
		return
	}
	if attempts == nil {
		attempts = []models.AttemptDetail{}
	}

	respondJSON(w, http.StatusOK, attempts)
}

// GetAttempt returns one of the caller's attempts
func (h *AttemptsHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	attempt, err := h.attempts.GetDetail(r.Context(), userID, id)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Attempt not found")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_get_attempt", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve attempt")
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}

// CreateAttempt records a new attempt for the caller
func (h *AttemptsHandler) CreateAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, ok := parseAttemptRequest(w, r)
	if !ok {
		return
	}
	if !h.problemExists(w, r, req.ProblemID) {
		return
	}

	ctx := r.Context()
	attempt := &models.Attempt{
		UserID:     userID,
		ProblemID:  req.ProblemID,
		Date:       req.Date.UTC(),
		SolvedSolo: *req.SolvedSolo,
		TimeSpent:  req.TimeSpent,
	}
	if err := h.attempts.Create(ctx, attempt); err != nil {
		h.logger.Error("failed_to_create_attempt", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create attempt")
		return
	}

	h.changed(ctx, userID, queue.TriggerAttemptCreated)
	respondJSON(w, http.StatusCreated, attempt)
}

// UpdateAttempt rewrites one of the caller's attempts
func (h *AttemptsHandler) UpdateAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	req, ok := parseAttemptRequest(w, r)
	if !ok {
		return
	}
	if !h.problemExists(w, r, req.ProblemID) {
		return
	}

	ctx := r.Context()
	attempt := &models.Attempt{
		ID:         id,
		UserID:     userID,
		ProblemID:  req.ProblemID,
		Date:       req.Date.UTC(),
		SolvedSolo: *req.SolvedSolo,
		TimeSpent:  req.TimeSpent,
	}
	err := h.attempts.Update(ctx, attempt)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Attempt not found")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_update_attempt", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update attempt")
		return
	}

	h.changed(ctx, userID, queue.TriggerAttemptUpdated)
	respondJSON(w, http.StatusOK, attempt)
}

// DeleteAttempt removes one of the caller's attempts
func (h *AttemptsHandler) DeleteAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := attemptID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	err := h.attempts.Delete(ctx, userID, id)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Attempt not found")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_delete_attempt", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete attempt")
		return
	}

	h.changed(ctx, userID, queue.TriggerAttemptDeleted)
	w.WriteHeader(http.StatusNoContent)
}
