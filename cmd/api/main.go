package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/app"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/identity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/router"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/utilities"
)

func main() {
	// best-effort: if no .env exists, continue with the real environment
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-profile-claim")

	idCfg := identity.ConfigFromEnv()
	users, err := idCfg.ProviderVerifier()
	if err != nil {
		sugar.Fatalf("identity: %v", err)
	}
	ops, err := idCfg.OperatorVerifier()
	if err != nil {
		sugar.Fatalf("identity: %v", err)
	}
	signer, err := idCfg.OperatorSigner()
	if err != nil {
		sugar.Fatalf("identity: %v", err)
	}

	db, err := database.ConnectX(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(db, claim.ConfigFromEnv(), sugar)
	if err := a.Migrate(ctx); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}

	cfg := router.ConfigFromEnv()
	handler := router.New(cfg, router.Deps{
		Logger:   sugar,
		Users:    users,
		Ops:      ops,
		Profiles: profile.NewHandler(a.Profiles, sugar),
		Claims:   claim.NewHandler(a.Claims, a.Requests, sugar),
		Operator: operator.NewHandler(a.Operators, signer, sugar),
		Health:   db.PingContext,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", cfg.Addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
