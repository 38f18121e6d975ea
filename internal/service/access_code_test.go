package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/telemetry"
	"github.com/songon-extension/access-server/internal/util"
)

func TestAccessCodeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("prospect code expires after the requested hours", func(t *testing.T) {
		env := newTestEnv(t)
		ac := env.prospect(t, 48, "P1")

		assert.Len(t, ac.Code, 8)
		for _, r := range ac.Code {
			assert.True(t, strings.ContainsRune(util.AccessCodeChars, r), "unexpected rune %q", r)
		}
		assert.True(t, ac.Active)
		require.NotNil(t, ac.ExpiresAt)
		assert.Equal(t, env.clock.Now().Add(48*time.Hour), *ac.ExpiresAt)
		assert.Equal(t, []string{"P1"}, []string(ac.ParcelleIDs))
	})

	t.Run("prospect code without parcels is a wildcard", func(t *testing.T) {
		env := newTestEnv(t)
		ac := env.prospect(t, 1)
		assert.True(t, ac.IsWildcard())
	})

	t.Run("owner code needs at least one parcel", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:  "Yao Kouassi",
			ProfileType: model.ProfileProprietaire,
		})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("owner code has no expiry", func(t *testing.T) {
		env := newTestEnv(t)
		ac := env.owner(t, "P1", "P2")
		assert.Nil(t, ac.ExpiresAt)
	})

	t.Run("rejects unknown parcels", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:   "Awa Koné",
			ProfileType:  model.ProfileProspect,
			ParcelleIDs:  []string{"P1", "P404"},
			ExpiresHours: 1,
		})
		require.Error(t, err)
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeValidation, appErr.Code)
		assert.Equal(t, map[string]any{"missing": []string{"P404"}}, appErr.Details)
	})

	t.Run("rejects out of range expiry", func(t *testing.T) {
		env := newTestEnv(t)
		for _, hours := range []int{0, -1, maxExpiresHours + 1} {
			_, err := env.registry.Create(ctx, CreateAccessCodeInput{
				ClientName:   "Awa Koné",
				ProfileType:  model.ProfileProspect,
				ExpiresHours: hours,
			})
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err), "hours=%d", hours)
		}
	})

	t.Run("prospect cannot carry camera settings", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:    "Awa Koné",
			ProfileType:   model.ProfileProspect,
			ExpiresHours:  1,
			CameraEnabled: true,
		})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("rejects missing name and unknown profile", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.registry.Create(ctx, CreateAccessCodeInput{ProfileType: model.ProfileProspect, ExpiresHours: 1})
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))

		_, err = env.registry.Create(ctx, CreateAccessCodeInput{ClientName: "X", ProfileType: "VISITOR"})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("video urls are encrypted at rest", func(t *testing.T) {
		env := newTestEnv(t)
		ac := env.issue(t, CreateAccessCodeInput{
			ProfileType:   model.ProfileProprietaire,
			ParcelleIDs:   []string{"P1", "P2"},
			CameraEnabled: true,
			VideoURL:      "https://cams.example.com/p1.m3u8",
			ParcelleConfigs: model.ParcelleConfigs{
				"P2": {CameraEnabled: true, VideoURL: "https://cams.example.com/p2.m3u8"},
			},
		})

		assert.Equal(t, "https://cams.example.com/p1.m3u8", ac.VideoURL)
		assert.Equal(t, "https://cams.example.com/p2.m3u8", ac.ParcelleConfigs["P2"].VideoURL)

		stored := env.codes.stored(ac.ID)
		assert.True(t, strings.HasPrefix(stored.VideoURL, "enc:v1:"))
		assert.True(t, strings.HasPrefix(stored.ParcelleConfigs["P2"].VideoURL, "enc:v1:"))
	})

	t.Run("parcel configs must be inside the scope", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:      "Yao Kouassi",
			ProfileType:     model.ProfileProprietaire,
			ParcelleIDs:     []string{"P1"},
			ParcelleConfigs: model.ParcelleConfigs{"P2": {CameraEnabled: true}},
		})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})
}

func TestAccessCodeService_CreateCollisions(t *testing.T) {
	ctx := context.Background()

	t.Run("retries until a free code is drawn", func(t *testing.T) {
		env := newTestEnv(t)
		taken := env.prospect(t, 1, "P1")

		draws := []string{taken.Code, taken.Code, "FRESH234"}
		calls := 0
		env.registry.generate = func(int) (string, error) {
			code := draws[calls]
			calls++
			return code, nil
		}
		before := testutil.ToFloat64(telemetry.CodeGenerationCollisionsTotal)

		ac, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:   "Awa Koné",
			ProfileType:  model.ProfileProspect,
			ExpiresHours: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, "FRESH234", ac.Code)
		assert.Equal(t, 3, calls)
		assert.Equal(t, before+2, testutil.ToFloat64(telemetry.CodeGenerationCollisionsTotal))
	})

	t.Run("gives up after the attempt bound", func(t *testing.T) {
		env := newTestEnv(t)
		taken := env.prospect(t, 1, "P1")

		calls := 0
		env.registry.generate = func(int) (string, error) {
			calls++
			return taken.Code, nil
		}

		_, err := env.registry.Create(ctx, CreateAccessCodeInput{
			ClientName:   "Awa Koné",
			ProfileType:  model.ProfileProspect,
			ExpiresHours: 1,
		})
		assert.Equal(t, apperrors.ErrCodeGenerationExhausted, apperrors.GetCode(err))
		assert.Equal(t, env.registry.maxAttempts, calls)
	})
}

func TestAccessCodeService_GetAndRevoke(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ac := env.prospect(t, 1, "P1")

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		got, err := env.registry.Get(ctx, "  "+strings.ToLower(ac.Code)+" ")
		require.NoError(t, err)
		assert.Equal(t, ac.ID, got.ID)
	})

	t.Run("unknown code is not found", func(t *testing.T) {
		_, err := env.registry.Get(ctx, "NOPE2345")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("revoke is one-way", func(t *testing.T) {
		revoked, err := env.registry.Revoke(ctx, ac.ID)
		require.NoError(t, err)
		assert.False(t, revoked.Active)
		assert.NotNil(t, revoked.RevokedAt)

		_, err = env.registry.Revoke(ctx, ac.ID)
		assert.Equal(t, apperrors.ErrCodeAlreadyRevoked, apperrors.GetCode(err))

		got, err := env.registry.Get(ctx, ac.Code)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})

	t.Run("revoking an unknown id is not found", func(t *testing.T) {
		_, err := env.registry.Revoke(ctx, "missing")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestAccessCodeService_List(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	short := env.prospect(t, 1, "P1")
	long := env.prospect(t, 72, "P2")
	owner := env.owner(t, "P1")

	env.clock.Advance(2 * time.Hour)

	page, err := env.registry.List(ctx, model.AccessCodeFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Total)

	byID := map[string]AccessCodeView{}
	for _, v := range page.Items {
		byID[v.ID] = v
	}
	assert.True(t, byID[short.ID].IsExpired)
	assert.False(t, byID[short.ID].IsUsable)
	assert.False(t, byID[long.ID].IsExpired)
	assert.True(t, byID[long.ID].IsUsable)
	assert.False(t, byID[owner.ID].IsExpired)

	page, err = env.registry.List(ctx, model.AccessCodeFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Total, "total counts past the page")

	page, err = env.registry.List(ctx, model.AccessCodeFilter{ProfileType: model.ProfileProspect, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Total)

	counts, err := env.registry.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 1, counts.Expired)
	assert.Equal(t, 2, counts.Active)
	assert.Equal(t, 1, counts.Proprietaires)
}

func TestAccessCodeService_UpdateCamera(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("owner code", func(t *testing.T) {
		owner := env.owner(t, "P1", "P2")
		updated, err := env.registry.UpdateCamera(ctx, owner.ID, UpdateCameraInput{
			CameraEnabled: true,
			VideoURL:      "https://cams.example.com/live.m3u8",
		})
		require.NoError(t, err)
		assert.True(t, updated.CameraEnabled)
		assert.Equal(t, "https://cams.example.com/live.m3u8", updated.VideoURL)
	})

	t.Run("prospect code is rejected", func(t *testing.T) {
		prospect := env.prospect(t, 1, "P1")
		_, err := env.registry.UpdateCamera(ctx, prospect.ID, UpdateCameraInput{CameraEnabled: true})
		assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := env.registry.UpdateCamera(ctx, "missing", UpdateCameraInput{})
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}
