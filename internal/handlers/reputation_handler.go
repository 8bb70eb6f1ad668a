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

type ReputationHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewReputationHandler(ledger *services.LedgerService) *ReputationHandler {
	return &ReputationHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// History returns a user's recent reputation transactions, newest first.
// Users may read their own history; moderation staff may read anyone's.
func (h *ReputationHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID <= 0 {
		services.SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}
	if userID != identity.UserID && !identity.IsAdmin() {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.ledger.History(r.Context(), userID, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to load reputation history", http.StatusInternalServerError, nil)
		return
	}
	if history == nil {
		history = []models.ReputationTransaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": history,
		"count":        len(history),
	})
}

// Adjust applies a moderation adjustment (spam penalty, moderation bonus or
// bounty) to a user. Admin only; the amount for bounties comes from the
// request, everything else uses the canonical table.
func (h *ReputationHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if !identity.IsAdmin() {
		services.SendErrorResponse(w, "Admin access required", http.StatusForbidden, nil)
		return
	}

	var req struct {
		UserID     int64  `json:"user_id" validate:"required,gt=0"`
		Type       string `json:"type" validate:"required,oneof=spam_penalty moderation_bonus bounty_awarded"`
		Amount     int    `json:"amount"`
		TargetKind string `json:"target_kind" validate:"required,oneof=question answer"`
		TargetID   int64  `json:"target_id" validate:"required,gt=0"`
		Reason     string `json:"reason" validate:"required,min=3,max=500"`
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

	amount, ok := models.ReputationAmount(req.Type)
	if !ok {
		// Bounties carry their own amount.
		if req.Amount == 0 {
			services.SendErrorResponse(w, "Amount is required for bounties", http.StatusBadRequest, nil)
			return
		}
		amount = req.Amount
	}

	target := models.TargetRef{Kind: models.TargetKind(req.TargetKind), ID: req.TargetID}
	txn, err := h.ledger.Record(r.Context(), req.UserID, req.Type, amount, target, req.Reason)
	switch {
	case errors.Is(err, services.ErrNotFound):
		services.SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, services.ErrAmountOutOfRange):
		services.SendErrorResponse(w, "Amount out of range", http.StatusBadRequest, nil)
		return
	case errors.Is(err, services.ErrReputationFloor):
		services.SendErrorResponse(w, "Adjustment would push reputation below the floor", http.StatusConflict, nil)
		return
	case err != nil:
		services.SendErrorResponse(w, "Failed to apply adjustment", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transaction": txn,
	})
}
