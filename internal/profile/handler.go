package profile

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/identity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
)

// View is the public projection of a profile. Owner identities stay server side;
// Mine tells a signed-in caller whether the profile is theirs.
type View struct {
	ID          string     `json:"id"`
	Username    *string    `json:"username,omitempty"`
	DisplayName string     `json:"display_name"`
	Kind        string     `json:"kind"`
	IsPrimary   bool       `json:"is_primary"`
	IsHidden    bool       `json:"is_hidden"`
	ClaimStatus string     `json:"claim_status"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	Mine        bool       `json:"mine"`
}

// NewView projects p for viewer, who may be "".
func NewView(p *entity.Profile, viewer string) View {
	return View{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Kind:        p.Kind,
		IsPrimary:   p.IsPrimary,
		IsHidden:    p.IsHidden,
		ClaimStatus: p.ClaimStatus,
		ClaimedAt:   p.ClaimedAt,
		CreatedAt:   p.CreatedAt,
		Mine:        p.OwnedBy(viewer),
	}
}

// Handler exposes HTTP endpoints for profiles.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /admin/profiles.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Debugw("invalid profile payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid payload"})
		return
	}
	p, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Infow("profile created", "profile_id", p.ID, "operator", identity.SubjectFrom(r.Context()))
	h.writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "profile": p})
}

// Get handles GET /profiles/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile": NewView(p, identity.SubjectFrom(r.Context()))})
}

// GetByUsername handles GET /u/{username}.
func (h *Handler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile": NewView(p, identity.SubjectFrom(r.Context()))})
}

// ListMine handles GET /me/profiles.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer := identity.SubjectFrom(r.Context())
	ps, err := h.svc.ListOwned(r.Context(), viewer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]View, 0, len(ps))
	for _, p := range ps {
		views = append(views, NewView(p, viewer))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profiles": views})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrUsernameTaken):
		h.writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": err.Error()})
	default:
		h.logger.Errorw("profile operation failed", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "something went wrong"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
