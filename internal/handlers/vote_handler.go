package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stackgo/backend/internal/middleware"
	"github.com/stackgo/backend/internal/models"
	"github.com/stackgo/backend/internal/services"
)

type VoteHandler struct {
	votes     *services.VoteService
	questions *services.QuestionService
	validator *services.ValidationHelper
}

func NewVoteHandler(votes *services.VoteService, questions *services.QuestionService) *VoteHandler {
	return &VoteHandler{
		votes:     votes,
		questions: questions,
		validator: services.NewValidationHelper(),
	}
}

// VoteQuestion toggles the caller's vote on a question
func (h *VoteHandler) VoteQuestion(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, models.TargetQuestion, chi.URLParam(r, "questionId"))
}

// VoteAnswer toggles the caller's vote on an answer
func (h *VoteHandler) VoteAnswer(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, models.TargetAnswer, chi.URLParam(r, "answerId"))
}

func (h *VoteHandler) vote(w http.ResponseWriter, r *http.Request, kind models.TargetKind, rawID string) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	targetID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || targetID <= 0 {
		services.SendErrorResponse(w, "Invalid target id", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Value int `json:"value" validate:"required,oneof=-1 1"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	target := models.TargetRef{Kind: kind, ID: targetID}
	applied, err := h.votes.ToggleVote(r.Context(), identity.UserID, target, req.Value)
	switch {
	case errors.Is(err, services.ErrNotFound):
		services.SendErrorResponse(w, "Target not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, services.ErrSelfVote):
		services.SendErrorResponse(w, "You cannot vote on your own content", http.StatusBadRequest, nil)
		return
	case errors.Is(err, services.ErrInvalidVoteValue):
		services.SendErrorResponse(w, "Vote value must be +1 or -1", http.StatusBadRequest, nil)
		return
	case errors.Is(err, services.ErrReputationFloor):
		services.SendErrorResponse(w, "Vote rejected: it would push a reputation below the allowed floor", http.StatusConflict, nil)
		return
	case errors.Is(err, services.ErrVoteConflict):
		services.SendErrorResponse(w, "Vote conflicted with a concurrent request, please retry", http.StatusConflict, nil)
		return
	case err != nil:
		services.SendErrorResponse(w, "Failed to process vote", http.StatusInternalServerError, nil)
		return
	}

	score, _, _, err := h.questions.TargetScore(r.Context(), target)
	if err != nil {
		services.SendErrorResponse(w, "Failed to process vote", http.StatusInternalServerError, nil)
		return
	}

	message := "Thanks for voting! Your vote has been recorded."
	if applied == nil {
		message = "Your vote has been removed."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":    message,
		"vote_value": applied,
		"vote_score": score,
	})
}
