package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelforge/waitlist/internal/handler/dto"
	"github.com/modelforge/waitlist/internal/service"
)

// Error messages returned to clients.
const (
	msgInvalidEmail       = "invalid email"
	msgAlreadyRegistered  = "already registered"
	msgUnavailable        = "unavailable"
	msgInvalidRequestBody = "invalid request body"
	msgPayloadTooLarge    = "request body too large"
)

// SignupHandler handles HTTP requests for the waitlist counter.
type SignupHandler struct {
	svc    *service.CounterService
	logger *slog.Logger
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(svc *service.CounterService, logger *slog.Logger) *SignupHandler {
	return &SignupHandler{
		svc:    svc,
		logger: logger.With("component", "handler.signup"),
	}
}

// Submit handles POST /signups.
func (h *SignupHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	res, err := h.svc.SubmitEmail(r.Context(), req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SubmitSignupResponse{Success: true, Count: res.Count})
}

// Count handles GET /count.
func (h *SignupHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.GetCurrentCount(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CountResponse{Count: count})
}

// List handles GET /signups. Access control is applied by middleware.
func (h *SignupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSignups(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSignupListResponse(list.Count, list.Entries))
}

// handleServiceError maps service errors to HTTP responses.
func (h *SignupHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, msgInvalidEmail)
	case errors.Is(err, service.ErrDuplicateSignup):
		writeError(w, http.StatusConflict, msgAlreadyRegistered)
	case errors.Is(err, service.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		h.logger.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, msgUnavailable)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}
