package claim

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/identity"
)

// Handler exposes the claim link and claim request endpoints.
type Handler struct {
	svc      *Service
	requests *RequestService
	logger   *zap.SugaredLogger
}

func NewHandler(svc *Service, requests *RequestService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, requests: requests, logger: logger}
}

// IssueLink handles POST /admin/profiles/{id}/claim-link.
func (h *Handler) IssueLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.IssueClaimLink(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "link": link})
}

// RedeemRequest is the body of POST /claims/redeem.
type RedeemRequest struct {
	Token string `json:"token"`
}

// Redeem handles POST /claims/redeem.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid redeem payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid payload"})
		return
	}
	profileID, err := h.svc.RedeemClaimLink(r.Context(), req.Token, identity.SubjectFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile_id": profileID})
}

// SubmitRequestBody is the body of POST /profiles/{id}/claim-requests.
type SubmitRequestBody struct {
	RequestedUsername string `json:"requested_username"`
	Message           string `json:"message"`
}

// SubmitRequest handles POST /profiles/{id}/claim-requests.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Debugw("invalid claim request payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid payload"})
		return
	}
	req, err := h.requests.Submit(r.Context(), SubmitInput{
		ProfileID:         r.PathValue("id"),
		RequesterID:       identity.SubjectFrom(r.Context()),
		RequestedUsername: body.RequestedUsername,
		Message:           body.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "request": req})
}

// ListRequests handles GET /admin/claim-requests?status=&limit=&offset=.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	reqs, err := h.requests.List(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "requests": reqs})
}

// ApproveRequest handles POST /admin/claim-requests/{id}/approve.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Approve(r.Context(), r.PathValue("id"), identity.SubjectFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})
}

// RejectRequest handles POST /admin/claim-requests/{id}/reject.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Reject(r.Context(), r.PathValue("id"), identity.SubjectFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "request": req})
}

// fail maps service errors to a status and a user-facing message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": err.Error()})
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": verr.Message, "field": verr.Field})
	case errors.Is(err, ErrInvalidLink):
		h.writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrRequestNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
	case IsConflict(err):
		h.writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": err.Error()})
	default:
		h.logger.Errorw("claim operation failed", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "something went wrong"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
