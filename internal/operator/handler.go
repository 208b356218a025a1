package operator

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/identity"
)

// Handler exposes the operator login endpoint.
type Handler struct {
	svc    *Service
	signer *identity.Signer
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, signer *identity.Signer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, signer: signer, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the operator bearer token.
type LoginResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid payload"})
		return
	}
	op, err := h.svc.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("operator login failed", "err", err)
		switch {
		case errors.Is(err, ErrBadCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "invalid credentials"})
		case errors.Is(err, ErrLocked):
			h.writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": "account locked"})
		case errors.Is(err, ErrDisabled):
			h.writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "error": "account disabled"})
		default:
			h.logger.Errorw("operator login error", "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "something went wrong"})
		}
		return
	}
	token, exp, err := h.signer.Sign(op.ID, identity.RoleOperator, op.Email)
	if err != nil {
		h.logger.Errorw("sign operator token", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "something went wrong"})
		return
	}
	h.logger.Infow("operator signed in", "operator", op.ID)
	h.writeJSON(w, http.StatusOK, LoginResponse{OK: true, Token: token, ExpiresAt: exp})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
