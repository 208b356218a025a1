// Package app wires stores and services shared by the API server and claimctl.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim"
	claimrepo "github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator"
	operatorrepo "github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator/repo"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile"
	profilerepo "github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/repo"
)

type App struct {
	DB        *sqlx.DB
	Profiles  *profile.Service
	Claims    *claim.Service
	Requests  *claim.RequestService
	Operators *operator.Service

	profileRepo  *profilerepo.ProfileRepo
	requestRepo  *claimrepo.RequestRepo
	operatorRepo *operatorrepo.OperatorRepo
}

func New(db *sqlx.DB, cfg claim.Config, logger *zap.SugaredLogger) *App {
	profiles := profilerepo.NewProfileRepo(db)
	requests := claimrepo.NewRequestRepo(db)
	operators := operatorrepo.NewOperatorRepo(db)
	claims := claim.NewService(profiles, cfg, logger)
	return &App{
		DB:           db,
		Profiles:     profile.NewService(profiles),
		Claims:       claims,
		Requests:     claim.NewRequestService(requests, profiles, claims, logger),
		Operators:    operator.NewService(operators, nil),
		profileRepo:  profiles,
		requestRepo:  requests,
		operatorRepo: operators,
	}
}

// Migrate creates every table and index the service needs. Profiles go
// first since claim_requests references them.
func (a *App) Migrate(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"profiles", a.profileRepo.EnsureTable},
		{"claim_requests", a.requestRepo.EnsureTable},
		{"operators", a.operatorRepo.EnsureTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
