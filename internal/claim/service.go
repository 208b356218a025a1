package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
	profilerepo "github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
)

// ProfileStore persists claim state on profile rows. The conditional methods
// report false when their WHERE predicates no longer match.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	SetClaimToken(ctx context.Context, id, digest string, expiresAt, now time.Time) (bool, error)
	FindClaimable(ctx context.Context, digest string, now time.Time) (*entity.Profile, error)
	CompleteClaim(ctx context.Context, id, digest, identity string, now time.Time) (bool, error)
	AssignOwner(ctx context.Context, id, identity, username string, now time.Time) (bool, error)
	DemoteSiblings(ctx context.Context, identity, keepID string, now time.Time) (int64, error)
}

var _ ProfileStore = (*profilerepo.ProfileRepo)(nil)

// Service runs the claim state machine: issue a link, redeem it, demote siblings.
type Service struct {
	profiles ProfileStore
	cfg      Config
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(profiles ProfileStore, cfg Config, logger *zap.SugaredLogger) *Service {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = defaultLinkTTL
	}
	return &Service{profiles: profiles, cfg: cfg, logger: logger, now: time.Now}
}

// Link is an issued claim link. URL holds the only copy of the secret.
type Link struct {
	ProfileID string    `json:"profile_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueClaimLink stores a new digest for the profile, invalidating any earlier
// link, and returns the URL embedding the raw secret.
func (s *Service) IssueClaimLink(ctx context.Context, profileID string) (*Link, error) {
	p, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.ClaimLinksIssuedTotal.WithLabelValues("not_found").Inc()
			return nil, ErrProfileNotFound
		}
		metrics.ClaimLinksIssuedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !p.HasUsername() {
		metrics.ClaimLinksIssuedTotal.WithLabelValues("validation").Inc()
		return nil, invalid("username", "profile needs a username before a claim link can be issued")
	}

	secret := IssueToken()
	digest := HashToken(secret)
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.LinkTTL)

	ok, err := s.profiles.SetClaimToken(ctx, p.ID, digest, expiresAt, now)
	if err != nil {
		metrics.ClaimLinksIssuedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store claim token: %w", err)
	}
	if !ok {
		metrics.ClaimLinksIssuedTotal.WithLabelValues("not_found").Inc()
		return nil, ErrProfileNotFound
	}

	metrics.ClaimLinksIssuedTotal.WithLabelValues("ok").Inc()
	s.logger.Infow("claim link issued", "profile_id", p.ID, "digest", digestPrefix(digest), "expires_at", expiresAt)
	return &Link{ProfileID: p.ID, URL: s.cfg.ClaimURL(*p.Username, secret), ExpiresAt: expiresAt}, nil
}

// RedeemClaimLink gives the profile holding secret to identity and returns its id.
// A link redeems at most once: the ownership update is conditioned on the
// digest and unclaimed status, so a concurrent redeemer loses with ErrInvalidLink.
func (s *Service) RedeemClaimLink(ctx context.Context, secret, identity string) (string, error) {
	if identity == "" {
		metrics.ClaimRedemptionsTotal.WithLabelValues("unauthenticated").Inc()
		return "", ErrUnauthenticated
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		metrics.ClaimRedemptionsTotal.WithLabelValues("validation").Inc()
		return "", invalid("token", "claim token is required")
	}

	digest := HashToken(secret)
	now := s.now().UTC()

	p, err := s.profiles.FindClaimable(ctx, digest, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.ClaimRedemptionsTotal.WithLabelValues("invalid").Inc()
			return "", ErrInvalidLink
		}
		metrics.ClaimRedemptionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("find claimable profile: %w", err)
	}

	ok, err := s.profiles.CompleteClaim(ctx, p.ID, digest, identity, now)
	if err != nil {
		metrics.ClaimRedemptionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("complete claim: %w", err)
	}
	if !ok {
		metrics.ClaimRedemptionsTotal.WithLabelValues("race_lost").Inc()
		s.logger.Infow("claim lost to concurrent redeemer", "profile_id", p.ID, "digest", digestPrefix(digest))
		return "", ErrInvalidLink
	}

	metrics.ClaimRedemptionsTotal.WithLabelValues("ok").Inc()
	s.logger.Infow("profile claimed", "profile_id", p.ID, "owner", identity)
	s.demoteSiblings(ctx, identity, p.ID, now)
	return p.ID, nil
}

// AssignOwner hands a not-yet-claimed profile to identity under username.
// It is the approval path of the claim request queue.
func (s *Service) AssignOwner(ctx context.Context, profileID, identity, username string) error {
	now := s.now().UTC()
	ok, err := s.profiles.AssignOwner(ctx, profileID, identity, username, now)
	if err != nil {
		if database.IsUniqueViolation(err, profilerepo.UsernameIndex) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("assign owner: %w", err)
	}
	if !ok {
		if _, err := s.profiles.GetByID(ctx, profileID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("load profile: %w", err)
		}
		return ErrAlreadyClaimed
	}
	s.logger.Infow("profile assigned", "profile_id", profileID, "owner", identity, "username", username)
	s.demoteSiblings(ctx, identity, profileID, now)
	return nil
}

// demoteSiblings keeps at most one visible primary profile per identity.
// Failures are logged and never fail the claim.
func (s *Service) demoteSiblings(ctx context.Context, identity, keepID string, now time.Time) {
	n, err := s.profiles.DemoteSiblings(ctx, identity, keepID, now)
	if err != nil {
		metrics.SiblingDemotionsFailedTotal.Inc()
		s.logger.Warnw("sibling demotion failed", "profile_id", keepID, "owner", identity, "err", err)
		return
	}
	if n > 0 {
		s.logger.Infow("sibling profiles demoted", "profile_id", keepID, "owner", identity, "count", n)
	}
}
