package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/metrics"
	profileentity "github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/utilities"
)

const maxMessageLen = 1000

// RequestStore persists claim requests.
type RequestStore interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id string) (*entity.Request, error)
	HasPending(ctx context.Context, profileID, requester string) (bool, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.Request, error)
	Resolve(ctx context.Context, id, status, reviewer string, now time.Time) (bool, error)
	Reopen(ctx context.Context, id string) (bool, error)
	RejectOtherPending(ctx context.Context, profileID, exceptID, reviewer string, now time.Time) (int64, error)
}

var _ RequestStore = (*repo.RequestRepo)(nil)

// RequestService is the operator-reviewed claim path for users without a link.
type RequestService struct {
	requests RequestStore
	profiles ProfileStore
	claims   *Service
	logger   *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
}

func NewRequestService(requests RequestStore, profiles ProfileStore, claims *Service, logger *zap.SugaredLogger) *RequestService {
	return &RequestService{
		requests: requests,
		profiles: profiles,
		claims:   claims,
		logger:   logger,
		now:      time.Now,
		newID:    utilities.NewKSUID,
	}
}

// SubmitInput is the public claim request form.
type SubmitInput struct {
	ProfileID         string
	RequesterID       string
	RequestedUsername string
	Message           string
}

// Submit records a pending claim request.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (*entity.Request, error) {
	req, err := s.submit(ctx, in)
	metrics.ClaimRequestsTotal.WithLabelValues("submit", resultLabel(err)).Inc()
	return req, err
}

func (s *RequestService) submit(ctx context.Context, in SubmitInput) (*entity.Request, error) {
	if in.RequesterID == "" {
		return nil, ErrUnauthenticated
	}
	username := profileentity.NormalizeUsername(in.RequestedUsername)
	if username == "" {
		return nil, invalid("requested_username", "username is required")
	}
	if err := profileentity.ValidateUsername(username); err != nil {
		return nil, invalid("requested_username", err.Error())
	}
	msg := strings.TrimSpace(in.Message)
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return nil, invalid("message", fmt.Sprintf("message must be at most %d characters", maxMessageLen))
	}

	p, err := s.profiles.GetByID(ctx, in.ProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p.ClaimStatus == profileentity.ClaimClaimed {
		return nil, ErrAlreadyClaimed
	}
	pending, err := s.requests.HasPending(ctx, p.ID, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("check pending requests: %w", err)
	}
	if pending {
		return nil, ErrPendingRequest
	}
	taken, err := s.profiles.UsernameTaken(ctx, username, p.ID)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	req := &entity.Request{
		ID:                s.newID(),
		ProfileID:         p.ID,
		RequesterID:       in.RequesterID,
		RequestedUsername: username,
		Message:           msg,
		Status:            entity.StatusPending,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if database.IsUniqueViolation(err, repo.PendingIndex) {
			return nil, ErrPendingRequest
		}
		return nil, fmt.Errorf("create claim request: %w", err)
	}
	s.logger.Infow("claim request submitted", "request_id", req.ID, "profile_id", p.ID, "requester", in.RequesterID)
	return req, nil
}

// List returns claim requests for review. An empty status lists all.
func (s *RequestService) List(ctx context.Context, status string, limit, offset int) ([]*entity.Request, error) {
	if status != "" && !entity.ValidStatus(status) {
		return nil, invalid("status", "unknown status")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.requests.List(ctx, status, limit, offset)
}

// Approve hands the profile to the requester under the requested username,
// marks the request approved and rejects competing pending requests.
func (s *RequestService) Approve(ctx context.Context, id, reviewer string) (*entity.Request, error) {
	req, err := s.approve(ctx, id, reviewer)
	metrics.ClaimRequestsTotal.WithLabelValues("approve", resultLabel(err)).Inc()
	return req, err
}

func (s *RequestService) approve(ctx context.Context, id, reviewer string) (*entity.Request, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.profiles.UsernameTaken(ctx, req.RequestedUsername, req.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	// the request must win pending -> approved before the profile changes hands
	now := s.now().UTC()
	ok, err := s.requests.Resolve(ctx, req.ID, entity.StatusApproved, reviewer, now)
	if err != nil {
		return nil, fmt.Errorf("resolve claim request: %w", err)
	}
	if !ok {
		return nil, ErrNotPending
	}
	if err := s.claims.AssignOwner(ctx, req.ProfileID, req.RequesterID, req.RequestedUsername); err != nil {
		if _, rerr := s.requests.Reopen(ctx, req.ID); rerr != nil {
			s.logger.Errorw("reopening claim request failed", "request_id", req.ID, "err", rerr)
		}
		return nil, err
	}
	if n, err := s.requests.RejectOtherPending(ctx, req.ProfileID, req.ID, reviewer, now); err != nil {
		s.logger.Warnw("rejecting competing claim requests failed", "profile_id", req.ProfileID, "err", err)
	} else if n > 0 {
		s.logger.Infow("competing claim requests rejected", "profile_id", req.ProfileID, "count", n)
	}

	req.Status = entity.StatusApproved
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &now
	s.logger.Infow("claim request approved", "request_id", req.ID, "profile_id", req.ProfileID, "reviewer", reviewer)
	return req, nil
}

// Reject marks a pending request rejected.
func (s *RequestService) Reject(ctx context.Context, id, reviewer string) (*entity.Request, error) {
	req, err := s.reject(ctx, id, reviewer)
	metrics.ClaimRequestsTotal.WithLabelValues("reject", resultLabel(err)).Inc()
	return req, err
}

func (s *RequestService) reject(ctx context.Context, id, reviewer string) (*entity.Request, error) {
	req, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ok, err := s.requests.Resolve(ctx, req.ID, entity.StatusRejected, reviewer, now)
	if err != nil {
		return nil, fmt.Errorf("resolve claim request: %w", err)
	}
	if !ok {
		return nil, ErrNotPending
	}
	req.Status = entity.StatusRejected
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &now
	s.logger.Infow("claim request rejected", "request_id", req.ID, "profile_id", req.ProfileID, "reviewer", reviewer)
	return req, nil
}

// pending loads a request and checks it is still pending.
func (s *RequestService) pending(ctx context.Context, id string) (*entity.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("load claim request: %w", err)
	}
	if req.Status != entity.StatusPending {
		return nil, ErrNotPending
	}
	return req, nil
}

func resultLabel(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.As(err, &verr):
		return "validation"
	case IsConflict(err):
		return "conflict"
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrRequestNotFound):
		return "not_found"
	default:
		return "error"
	}
}
