package repo

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
)

// openTestDB connects to TEST_DATABASE_URL inside a throwaway schema.
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

func seed(t *testing.T, r *ProfileRepo, id, username string) {
	t.Helper()
	now := time.Now().UTC()
	p := &entity.Profile{ID: id, DisplayName: id, Kind: entity.KindDesigner, ClaimStatus: entity.ClaimUnclaimed, CreatedAt: now, UpdatedAt: now}
	if username != "" {
		p.Username = &username
	}
	require.NoError(t, r.Create(context.Background(), p))
}

func TestProfileRepoClaimLifecycle(t *testing.T) {
	db := openTestDB(t)
	r := NewProfileRepo(db)
	ctx := context.Background()
	require.NoError(t, r.EnsureTable(ctx))
	require.NoError(t, r.EnsureTable(ctx), "idempotent")

	seed(t, r, "p1", "Studio-MK27")
	err := r.Create(ctx, &entity.Profile{ID: "p2", Username: strPtr("studio-mk27"), DisplayName: "x", Kind: entity.KindDesigner, ClaimStatus: entity.ClaimUnclaimed})
	assert.True(t, database.IsUniqueViolation(err, UsernameIndex))

	taken, err := r.UsernameTaken(ctx, "STUDIO-mk27", "")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = r.UsernameTaken(ctx, "studio-mk27", "p1")
	require.NoError(t, err)
	assert.False(t, taken)

	now := time.Now().UTC()
	ok, err := r.SetClaimToken(ctx, "p1", "digest-1", now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.SetClaimToken(ctx, "missing", "digest-1", now.Add(time.Hour), now)
	require.NoError(t, err)
	assert.False(t, ok)

	// reissue replaces the digest
	ok, err = r.SetClaimToken(ctx, "p1", "digest-2", now.Add(time.Hour), now)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.FindClaimable(ctx, "digest-1", now)
	assert.Error(t, err)

	p, err := r.FindClaimable(ctx, "digest-2", now)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	_, err = r.FindClaimable(ctx, "digest-2", now.Add(2*time.Hour))
	assert.Error(t, err, "expired")

	ok, err = r.CompleteClaim(ctx, "p1", "digest-2", "U1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.CompleteClaim(ctx, "p1", "digest-2", "U2", now)
	require.NoError(t, err)
	assert.False(t, ok, "single use")

	p, err = r.GetByUsername(ctx, "STUDIO-MK27")
	require.NoError(t, err)
	assert.Equal(t, "U1", *p.OwnerUserID)
	assert.Equal(t, entity.ClaimClaimed, p.ClaimStatus)
	assert.Nil(t, p.ClaimTokenHash)
	assert.True(t, p.IsPrimary)

	// reissue after a claim hands the profile back to nobody
	_, err = db.Exec(`UPDATE profiles SET legacy_user_id='L1' WHERE id='p1'`)
	require.NoError(t, err)
	ok, err = r.SetClaimToken(ctx, "p1", "digest-3", now.Add(time.Hour), now)
	require.NoError(t, err)
	require.True(t, ok)
	p, err = r.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, p.OwnerUserID)
	assert.Nil(t, p.LegacyUserID)
	assert.False(t, p.IsPrimary)
	owned, err := r.ListOwned(ctx, "L1")
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestProfileRepoOwnershipAndDemotion(t *testing.T) {
	db := openTestDB(t)
	r := NewProfileRepo(db)
	ctx := context.Background()
	require.NoError(t, r.EnsureTable(ctx))
	now := time.Now().UTC()

	seed(t, r, "a", "")
	seed(t, r, "b", "")
	seed(t, r, "c", "")
	_, err := db.Exec(`UPDATE profiles SET owner_user_id='U1', is_primary=true WHERE id='a'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE profiles SET legacy_user_id='U1', is_primary=true WHERE id='b'`)
	require.NoError(t, err)

	owned, err := r.ListOwned(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	ok, err := r.AssignOwner(ctx, "c", "U1", "jane-doe", now)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.AssignOwner(ctx, "c", "U2", "john-doe", now)
	require.NoError(t, err)
	assert.False(t, ok, "already claimed")

	n, err := r.DemoteSiblings(ctx, "U1", "c", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	owned, err = r.ListOwned(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, owned, 3)
	assert.Equal(t, "c", owned[0].ID)
	primaries := 0
	for _, p := range owned {
		if p.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}

func strPtr(s string) *string { return &s }
