package connect

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/marketplace-backend/pkg/stripe"
)

type stubStores struct {
	store *models.Store
}

func (s *stubStores) FindOwnedBy(_ context.Context, id, ownerID uuid.UUID) (*models.Store, error) {
	if s.store == nil || s.store.ID != id || s.store.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	out := *s.store
	return &out, nil
}

type stubSyncer struct {
	calls []string
}

func (s *stubSyncer) SyncPaymentAccount(_ context.Context, _ uuid.UUID, accountID, source string) (bool, error) {
	s.calls = append(s.calls, accountID+"/"+source)
	return true, nil
}

type stubGateway struct {
	accountsCreated int
	createErr       error
	linkAccount     string
	refreshURL      string
	returnURL       string
}

func (g *stubGateway) CreateExpressAccount(_ context.Context, _ pkgstripe.AccountRequest) (string, error) {
	if g.createErr != nil {
		return "", g.createErr
	}
	g.accountsCreated++
	return "acct_new", nil
}

func (g *stubGateway) CreateOnboardingLink(_ context.Context, accountID, refreshURL, returnURL string) (string, error) {
	g.linkAccount = accountID
	g.refreshURL = refreshURL
	g.returnURL = returnURL
	return "https://connect.stripe.test/onboard/" + accountID, nil
}

type countingMetrics struct{ ops []string }

func (m *countingMetrics) IncProcessorError(op string) { m.ops = append(m.ops, op) }

func newService(t *testing.T, store *models.Store, gw *stubGateway, syncer *stubSyncer, metrics *countingMetrics) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Stores:  &stubStores{store: store},
		Syncer:  syncer,
		Gateway: gw,
		BaseURL: "https://shop.test/",
		Metrics: metrics,
	})
	require.NoError(t, err)
	return svc
}

func TestOnboardCreatesAccountOnce(t *testing.T) {
	store := &models.Store{ID: uuid.New(), OwnerID: uuid.New()}
	gw := &stubGateway{}
	syncer := &stubSyncer{}
	svc := newService(t, store, gw, syncer, nil)

	res, err := svc.Onboard(context.Background(), OnboardInput{StoreID: store.ID, OwnerID: store.OwnerID, Email: "owner@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "https://connect.stripe.test/onboard/acct_new", res.URL)
	assert.Equal(t, []string{"acct_new/provisioning"}, syncer.calls)

	base := "https://shop.test/dashboard/stores/" + store.ID.String()
	assert.Equal(t, base+"?refresh=true", gw.refreshURL)
	assert.Equal(t, base, gw.returnURL)

	existing := "acct_existing"
	store.StripeAccountID = &existing
	res, err = svc.Onboard(context.Background(), OnboardInput{StoreID: store.ID, OwnerID: store.OwnerID, Email: "owner@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 1, gw.accountsCreated)
	assert.Equal(t, "acct_existing", gw.linkAccount)
}

func TestOnboardRejectsNonOwner(t *testing.T) {
	store := &models.Store{ID: uuid.New(), OwnerID: uuid.New()}
	svc := newService(t, store, &stubGateway{}, &stubSyncer{}, nil)

	_, err := svc.Onboard(context.Background(), OnboardInput{StoreID: store.ID, OwnerID: uuid.New(), Email: "x@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Onboard(context.Background(), OnboardInput{StoreID: store.ID, OwnerID: store.OwnerID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOnboardSurfacesProviderError(t *testing.T) {
	store := &models.Store{ID: uuid.New(), OwnerID: uuid.New()}
	providerErr := pkgerrors.Wrap(pkgerrors.CodePaymentProvider, errors.New("boom"), "create connected account: boom")
	syncer := &stubSyncer{}
	metrics := &countingMetrics{}
	svc := newService(t, store, &stubGateway{createErr: providerErr}, syncer, metrics)

	_, err := svc.Onboard(context.Background(), OnboardInput{StoreID: store.ID, OwnerID: store.OwnerID, Email: "o@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentProvider))
	assert.Empty(t, syncer.calls)
	assert.Equal(t, []string{"create_account"}, metrics.ops)
}
