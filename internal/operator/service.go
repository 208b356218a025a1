package operator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/utilities"
)

// PasswordHasher defines the minimal hashing interface.
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
	NeedsRehash(hash string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", b.cost()), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was produced with a different cost.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return c != b.cost()
}

// Store is the subset of repo.OperatorRepo used by Service.
type Store interface {
	Create(ctx context.Context, o *entity.Operator) error
	GetByEmail(ctx context.Context, email string) (*entity.Operator, error)
	IncrementFailedLogin(ctx context.Context, id string, now time.Time) (int, error)
	LockIfThreshold(ctx context.Context, id string, threshold int, until, now time.Time) (bool, error)
	UnlockIfExpired(ctx context.Context, id string, now time.Time) (bool, error)
	ResetLoginSuccess(ctx context.Context, id string, now time.Time) error
	UpdatePassword(ctx context.Context, id, hash, algo string, now time.Time) error
	SetStatus(ctx context.Context, id, status string, now time.Time) (bool, error)
}

var _ Store = (*repo.OperatorRepo)(nil)

var (
	ErrNotFound       = errors.New("operator not found")
	ErrLocked         = errors.New("operator locked")
	ErrDisabled       = errors.New("operator disabled")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidInput   = errors.New("invalid input")
)

const minPasswordLen = 10

// Service handles operator accounts and password authentication.
type Service struct {
	store  Store
	hasher PasswordHasher
	now    func() time.Time
	newID  func() string

	MaxFailed   int
	LockMinutes int
}

func NewService(store Store, hasher PasswordHasher) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		now:         time.Now,
		newID:       utilities.NewSnowflakeID,
		MaxFailed:   6,
		LockMinutes: 15,
	}
}

// Create registers an active operator.
func (s *Service) Create(ctx context.Context, email, displayName, password string) (*entity.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	o := &entity.Operator{
		ID:           s.newID(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		PasswordAlgo: algo,
		Status:       entity.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		if database.IsUniqueViolation(err, repo.EmailIndex) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return o, nil
}

// Authenticate checks email and password. Repeated failures lock the
// account for LockMinutes; an expired lock is lifted on the next attempt.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.Operator, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrBadCredentials
	}
	o, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	now := s.now().UTC()
	if o.LockExpired(now) {
		if unlocked, _ := s.store.UnlockIfExpired(ctx, o.ID, now); unlocked {
			o.Status = entity.StatusActive
			o.LockedUntil = nil
		}
	}
	switch o.Status {
	case entity.StatusLocked:
		return nil, ErrLocked
	case entity.StatusDisabled:
		return nil, ErrDisabled
	}

	if !s.hasher.Verify(o.PasswordHash, password) {
		if _, incErr := s.store.IncrementFailedLogin(ctx, o.ID, now); incErr == nil {
			until := now.Add(time.Duration(s.LockMinutes) * time.Minute)
			_, _ = s.store.LockIfThreshold(ctx, o.ID, s.MaxFailed, until, now)
		}
		return nil, ErrBadCredentials
	}

	if err := s.store.ResetLoginSuccess(ctx, o.ID, now); err != nil {
		return nil, err
	}
	if s.hasher.NeedsRehash(o.PasswordHash) {
		if hash, algo, hErr := s.hasher.Hash(password); hErr == nil {
			_ = s.store.UpdatePassword(ctx, o.ID, hash, algo, now)
		}
	}
	o.LoginFailedAttempts = 0
	o.LastLoginAt = &now
	return o, nil
}

// SetDisabled disables or re-enables the operator with email.
func (s *Service) SetDisabled(ctx context.Context, email string, disabled bool) error {
	o, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	status := entity.StatusActive
	if disabled {
		status = entity.StatusDisabled
	}
	ok, err := s.store.SetStatus(ctx, o.ID, status, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
