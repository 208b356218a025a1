package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/utilities"
)

// Store is the subset of repo.ProfileRepo used by Service.
type Store interface {
	Create(ctx context.Context, p *entity.Profile) error
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	GetByUsername(ctx context.Context, username string) (*entity.Profile, error)
	ListOwned(ctx context.Context, identity string) ([]*entity.Profile, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
}

var _ Store = (*repo.ProfileRepo)(nil)

var (
	ErrNotFound      = errors.New("profile not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUsernameTaken = errors.New("username already taken")
)

// Service handles operator-side profile creation and public reads.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, newID: utilities.NewSnowflakeID}
}

// CreateInput is the operator payload for a new unclaimed profile.
type CreateInput struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Kind        string `json:"kind"`
}

// Create inserts an unclaimed, non-primary profile.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Profile, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, fmt.Errorf("%w: display_name is required", ErrInvalidInput)
	}
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		kind = entity.KindDesigner
	}
	if !entity.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}

	var uname *string
	if u := entity.NormalizeUsername(in.Username); u != "" {
		if err := entity.ValidateUsername(u); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		taken, err := s.store.UsernameTaken(ctx, u, "")
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		uname = &u
	}

	now := s.now().UTC()
	p := &entity.Profile{
		ID:          s.newID(),
		Username:    uname,
		DisplayName: name,
		Kind:        kind,
		ClaimStatus: entity.ClaimUnclaimed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		if database.IsUniqueViolation(err, repo.UsernameIndex) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return p, nil
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Profile, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetByUsername returns a profile by username, case-insensitively.
func (s *Service) GetByUsername(ctx context.Context, username string) (*entity.Profile, error) {
	u := entity.NormalizeUsername(username)
	if u == "" {
		return nil, ErrNotFound
	}
	p, err := s.store.GetByUsername(ctx, u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListOwned returns the profiles owned by identity, primary first.
func (s *Service) ListOwned(ctx context.Context, identity string) ([]*entity.Profile, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	return s.store.ListOwned(ctx, identity)
}
