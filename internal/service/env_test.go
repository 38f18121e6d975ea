package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/songon-extension/access-server/internal/config"
	"github.com/songon-extension/access-server/internal/model"
	"github.com/songon-extension/access-server/internal/util"
	"github.com/songon-extension/access-server/internal/watermark"
)

// testEnv wires every service of the access server over in-memory stores and a
// controllable clock.
type testEnv struct {
	clock     *testClock
	codes     *memCodeRepo
	parcelles *memParcelleRepo
	docs      *memDocumentRepo
	logs      *memAccessLogRepo
	store     *memStorage
	email     *mockEmailSender

	registry     *AccessCodeService
	verifier     *VerificationService
	portfolio    *PortfolioService
	documents    *DocumentService
	delivery     *DeliveryService
	surveillance *SurveillanceService
	accessLog    *AccessLogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	secrets, err := util.NewSecretBox(strings.Repeat("5a", 32))
	require.NoError(t, err)

	env := &testEnv{
		clock: newTestClock(),
		parcelles: newMemParcelleRepo(
			model.Parcelle{ID: "P1", Nom: "Lot Lagune", ReferenceTF: "TF-1001", Superficie: 1.5, UniteSuperficie: "ha", Statut: model.StatutDisponible},
			model.Parcelle{ID: "P2", Nom: "Lot Colline", ReferenceTF: "TF-1002", Superficie: 2, UniteSuperficie: "ha", Statut: model.StatutOption},
			model.Parcelle{ID: "P3", Nom: "Lot Forêt", ReferenceTF: "TF-1003", Superficie: 800, UniteSuperficie: "m2", Statut: model.StatutVendu},
		),
		docs:  &memDocumentRepo{},
		logs:  &memAccessLogRepo{},
		store: newMemStorage(),
		email: &mockEmailSender{},
	}
	env.codes = &memCodeRepo{now: env.clock.Now}

	env.registry = NewAccessCodeService(env.codes, env.parcelles, secrets)
	env.registry.now = env.clock.Now

	env.verifier = NewVerificationService(env.codes, secrets)
	env.verifier.now = env.clock.Now

	env.portfolio = NewPortfolioService(env.verifier, env.parcelles)
	env.documents = NewDocumentService(env.docs, env.parcelles, env.store)

	env.accessLog = NewAccessLogService(env.logs, nil)
	env.accessLog.now = env.clock.Now
	// Closing up front makes every Record write inline, so assertions see entries immediately.
	env.accessLog.Close()

	env.delivery = NewDeliveryService(env.verifier, env.documents, env.parcelles, watermark.NewRenderer(),
		env.email, env.accessLog, &config.WhatsAppConfig{ContactNumber: "+225 07 11 22 33 44"})
	env.delivery.now = env.clock.Now

	env.surveillance = NewSurveillanceService(env.verifier, env.parcelles, env.accessLog)
	env.surveillance.now = env.clock.Now

	return env
}

func (e *testEnv) issue(t *testing.T, in CreateAccessCodeInput) *model.AccessCode {
	t.Helper()
	if in.ClientName == "" {
		in.ClientName = "Awa Koné"
	}
	ac, err := e.registry.Create(context.Background(), in)
	require.NoError(t, err)
	return ac
}

func (e *testEnv) prospect(t *testing.T, hours int, parcelles ...string) *model.AccessCode {
	t.Helper()
	return e.issue(t, CreateAccessCodeInput{
		ClientEmail:  "awa@example.com",
		ProfileType:  model.ProfileProspect,
		ParcelleIDs:  parcelles,
		ExpiresHours: hours,
	})
}

func (e *testEnv) owner(t *testing.T, parcelles ...string) *model.AccessCode {
	t.Helper()
	return e.issue(t, CreateAccessCodeInput{
		ClientName:  "Yao Kouassi",
		ClientEmail: "yao@example.com",
		ProfileType: model.ProfileProprietaire,
		ParcelleIDs: parcelles,
	})
}

func (e *testEnv) upload(t *testing.T, parcelleID, documentType string, content []byte) *model.DocumentFile {
	t.Helper()
	doc, err := e.documents.Upload(context.Background(), parcelleID, documentType, documentType+".png", bytes.NewReader(content))
	require.NoError(t, err)
	return doc
}
