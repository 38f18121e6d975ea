package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/songon-extension/access-server/internal/errors"
	"github.com/songon-extension/access-server/internal/model"
)

func TestSurveillanceService_EnableCamera(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ac := env.owner(t, "P1", "P2")

	_, err := env.surveillance.RequestStream(ctx, ac.Code, "P1")
	assert.Equal(t, apperrors.ErrCodeSurveillanceDenied, apperrors.GetCode(err))
	assert.Equal(t, 0, env.logs.count())

	_, err = env.registry.UpdateCamera(ctx, ac.ID, UpdateCameraInput{
		CameraEnabled: true,
		VideoURL:      "https://cams.example.com/p1.m3u8",
	})
	require.NoError(t, err)

	grant, err := env.surveillance.RequestStream(ctx, ac.Code, "P1")
	require.NoError(t, err)
	assert.True(t, grant.AccessGranted)
	assert.Equal(t, "https://cams.example.com/p1.m3u8", grant.VideoURL)

	entries, err := env.accessLog.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.DocumentTypeSurveillance, entries[0].DocumentType)
	assert.Equal(t, "P1", entries[0].ParcelleID)
	assert.Equal(t, "Lot Lagune", entries[0].ParcelleNom)
}

func TestSurveillanceService_PerParcelConfig(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ac := env.issue(t, CreateAccessCodeInput{
		ProfileType:   model.ProfileProprietaire,
		ParcelleIDs:   []string{"P1", "P2"},
		CameraEnabled: true,
		VideoURL:      "rtsp://cam/default",
		ParcelleConfigs: model.ParcelleConfigs{
			"P2": {CameraEnabled: false},
		},
	})

	grant, err := env.surveillance.RequestStream(ctx, ac.Code, "P1")
	require.NoError(t, err)
	assert.Equal(t, "rtsp://cam/default", grant.VideoURL)

	_, err = env.surveillance.RequestStream(ctx, ac.Code, "P2")
	assert.Equal(t, apperrors.ErrCodeSurveillanceDenied, apperrors.GetCode(err))
}

func TestSurveillanceService_Denials(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("prospect", func(t *testing.T) {
		ac := env.prospect(t, 24, "P1")
		_, err := env.surveillance.RequestStream(ctx, ac.Code, "P1")
		assert.Equal(t, apperrors.ErrCodeSurveillanceDenied, apperrors.GetCode(err))
	})

	t.Run("camera enabled without a url", func(t *testing.T) {
		ac := env.issue(t, CreateAccessCodeInput{
			ProfileType:   model.ProfileProprietaire,
			ParcelleIDs:   []string{"P1"},
			CameraEnabled: true,
		})
		_, err := env.surveillance.RequestStream(ctx, ac.Code, "P1")
		assert.Equal(t, apperrors.ErrCodeSurveillanceDenied, apperrors.GetCode(err))
	})

	t.Run("parcel outside the portfolio", func(t *testing.T) {
		ac := env.issue(t, CreateAccessCodeInput{
			ProfileType:   model.ProfileProprietaire,
			ParcelleIDs:   []string{"P1"},
			CameraEnabled: true,
			VideoURL:      "rtsp://cam/1",
		})
		_, err := env.surveillance.RequestStream(ctx, ac.Code, "P2")
		assert.Equal(t, apperrors.ErrCodeNotScoped, apperrors.GetCode(err))
	})

	assert.Equal(t, 0, env.logs.count())
}
