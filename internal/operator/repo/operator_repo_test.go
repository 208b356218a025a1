package repo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	schema := "t_" + strings.ToLower(ksuid.New().String())
	_, err = db.Exec(`CREATE SCHEMA ` + schema)
	require.NoError(t, err)
	_, err = db.Exec(`SET search_path TO ` + schema + `, public`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(`DROP SCHEMA ` + schema + ` CASCADE`)
		_ = db.Close()
	})
	return db
}

func TestOperatorRepoLockout(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	r := NewOperatorRepo(db)
	require.NoError(t, r.EnsureTable(ctx))

	now := time.Now().UTC()
	o := &entity.Operator{ID: "op1", Email: "Ops@Example.com", PasswordHash: "h", PasswordAlgo: "bcrypt:4", Status: entity.StatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, r.Create(ctx, o))

	dup := *o
	dup.ID = "op2"
	dup.Email = "ops@example.com"
	assert.True(t, database.IsUniqueViolation(r.Create(ctx, &dup), EmailIndex))

	got, err := r.GetByEmail(ctx, "OPS@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "op1", got.ID)

	for i := 1; i <= 3; i++ {
		n, err := r.IncrementFailedLogin(ctx, "op1", now)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	locked, err := r.LockIfThreshold(ctx, "op1", 4, now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.False(t, locked)
	locked, err = r.LockIfThreshold(ctx, "op1", 3, now.Add(time.Minute), now)
	require.NoError(t, err)
	assert.True(t, locked)

	unlocked, err := r.UnlockIfExpired(ctx, "op1", now)
	require.NoError(t, err)
	assert.False(t, unlocked)
	unlocked, err = r.UnlockIfExpired(ctx, "op1", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, unlocked)

	require.NoError(t, r.ResetLoginSuccess(ctx, "op1", now))
	require.NoError(t, r.UpdatePassword(ctx, "op1", "h2", "bcrypt:5", now))
	ok, err := r.SetStatus(ctx, "op1", entity.StatusDisabled, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = r.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDisabled, got.Status)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Zero(t, got.LoginFailedAttempts)
}
