package claim

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim/entity"
	profileentity "github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
)

// memProfiles mirrors the conditional SQL of repo.ProfileRepo in memory.
type memProfiles struct {
	mu   sync.Mutex
	rows map[string]*profileentity.Profile

	findErr   error
	demoteErr error
	// afterFind, when set, runs after FindClaimable matched and before it returns.
	afterFind func()
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[string]*profileentity.Profile)}
}

func (m *memProfiles) add(p *profileentity.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ClaimStatus == "" {
		p.ClaimStatus = profileentity.ClaimUnclaimed
	}
	cp := *p
	m.rows[p.ID] = &cp
}

func (m *memProfiles) get(id string) profileentity.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*profileentity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ID != excludeID && p.Username != nil && strings.EqualFold(*p.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProfiles) SetClaimToken(ctx context.Context, id, digest string, expiresAt, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	p.ClaimTokenHash = &digest
	p.ClaimExpiresAt = &expiresAt
	p.ClaimStatus = profileentity.ClaimUnclaimed
	p.OwnerUserID = nil
	p.LegacyUserID = nil
	p.IsPrimary = false
	p.ClaimedAt = nil
	p.UpdatedAt = now
	return true, nil
}

func claimable(p *profileentity.Profile, digest string, now time.Time) bool {
	return p.ClaimTokenHash != nil && *p.ClaimTokenHash == digest &&
		p.ClaimStatus == profileentity.ClaimUnclaimed &&
		(p.ClaimExpiresAt == nil || p.ClaimExpiresAt.After(now))
}

func (m *memProfiles) FindClaimable(ctx context.Context, digest string, now time.Time) (*profileentity.Profile, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	var found *profileentity.Profile
	for _, p := range m.rows {
		if claimable(p, digest, now) {
			cp := *p
			found = &cp
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, sql.ErrNoRows
	}
	if m.afterFind != nil {
		m.afterFind()
	}
	return found, nil
}

func (m *memProfiles) CompleteClaim(ctx context.Context, id, digest, identity string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || !claimable(p, digest, now) {
		return false, nil
	}
	owner := identity
	p.OwnerUserID = &owner
	p.ClaimStatus = profileentity.ClaimClaimed
	p.ClaimTokenHash = nil
	p.ClaimExpiresAt = nil
	p.ClaimedAt = &now
	p.IsPrimary = true
	p.IsHidden = false
	return true, nil
}

func (m *memProfiles) AssignOwner(ctx context.Context, id, identity, username string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.ClaimStatus == profileentity.ClaimClaimed {
		return false, nil
	}
	owner, uname := identity, username
	p.OwnerUserID = &owner
	p.Username = &uname
	p.ClaimStatus = profileentity.ClaimClaimed
	p.ClaimTokenHash = nil
	p.ClaimExpiresAt = nil
	p.ClaimedAt = &now
	p.IsPrimary = true
	p.IsHidden = false
	return true, nil
}

func (m *memProfiles) DemoteSiblings(ctx context.Context, identity, keepID string, now time.Time) (int64, error) {
	if m.demoteErr != nil {
		return 0, m.demoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.rows {
		if p.ID == keepID || !p.OwnedBy(identity) {
			continue
		}
		if !p.IsHidden || p.IsPrimary {
			p.IsHidden = true
			p.IsPrimary = false
			n++
		}
	}
	return n, nil
}

// memRequests mirrors repo.RequestRepo in memory.
type memRequests struct {
	mu   sync.Mutex
	rows map[string]*entity.Request
}

func newMemRequests() *memRequests {
	return &memRequests{rows: make(map[string]*entity.Request)}
}

func (m *memRequests) get(id string) entity.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memRequests) Create(ctx context.Context, req *entity.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.rows[req.ID] = &cp
	return nil
}

func (m *memRequests) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) HasPending(ctx context.Context, profileID, requester string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProfileID == profileID && r.RequesterID == requester && r.Status == entity.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRequests) List(ctx context.Context, status string, limit, offset int) ([]*entity.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*entity.Request{}
	for _, r := range m.rows {
		if status == "" || r.Status == status {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*entity.Request{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRequests) Resolve(ctx context.Context, id, status, reviewer string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != entity.StatusPending {
		return false, nil
	}
	rv := reviewer
	r.Status = status
	r.ReviewedBy = &rv
	r.ReviewedAt = &now
	return true, nil
}

func (m *memRequests) Reopen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != entity.StatusApproved {
		return false, nil
	}
	r.Status = entity.StatusPending
	r.ReviewedBy = nil
	r.ReviewedAt = nil
	return true, nil
}

func (m *memRequests) RejectOtherPending(ctx context.Context, profileID, exceptID, reviewer string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.ProfileID == profileID && r.ID != exceptID && r.Status == entity.StatusPending {
			rv := reviewer
			r.Status = entity.StatusRejected
			r.ReviewedBy = &rv
			r.ReviewedAt = &now
			n++
		}
	}
	return n, nil
}

func strPtr(s string) *string { return &s }
