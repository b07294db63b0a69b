package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/practice-queue/internal/database"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ProblemsHandler serves the problem catalog
type ProblemsHandler struct {
	problems database.ProblemRepositoryInterface
	logger   *zap.Logger
}

// NewProblemsHandler creates a new problems handler
func NewProblemsHandler(problems database.ProblemRepositoryInterface, logger *zap.Logger) *ProblemsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProblemsHandler{problems: problems, logger: logger}
}

// RegisterRoutes registers problem routes.
// The router should already have the /problems prefix.
func (h *ProblemsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListProblems).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetProblem).Methods(http.MethodGet)
}

// ListProblems returns every problem ordered by id
func (h *ProblemsHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.problems.List(r.Context())
	if err != nil {
		h.logger.Error("failed_to_list_problems", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve problems")
		return
	}
	respondJSON(w, http.StatusOK, problems)
}

// GetProblem returns a single problem
func (h *ProblemsHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problems.GetByID(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Problem not found")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_get_problem", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve problem")
		return
	}
	respondJSON(w, http.StatusOK, problem)
}
