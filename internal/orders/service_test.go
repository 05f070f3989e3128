package orders

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/cart"
	"github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/internal/stores"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

type fixture struct {
	conn   *gorm.DB
	svc    Service
	outbox *outbox.Repository
	rec    *recordingMetrics
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *recordingMetrics) IncConfirmation(source, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[source+"/"+outcome]++
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	outboxRepo := outbox.NewRepository(conn)
	rec := &recordingMetrics{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       db.FromGorm(conn),
		Stores:   stores.NewRepository(conn),
		Products: products.NewRepository(conn),
		Outbox:   outbox.NewService(outboxRepo, nil),
		Metrics:  rec,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, outbox: outboxRepo, rec: rec}
}

func shipping() types.AddressSnapshot {
	return types.AddressSnapshot{Name: "Ada", Address: "1 Main", City: "Austin", State: "TX", PostalCode: "78701"}
}

func cartFor(t *testing.T, store models.Store, product models.Product, qty int, displayPrice string) cart.Cart {
	t.Helper()
	var c cart.Cart
	require.NoError(t, c.Add(
		cart.StoreRef{ID: store.ID, Name: store.Name},
		cart.ProductSnapshot{ID: product.ID, Name: product.Name, Price: decimal.RequireFromString(displayPrice)},
		qty,
	))
	return c
}

func createInput(c cart.Cart) CreateOrderInput {
	return CreateOrderInput{
		Cart:            c,
		CustomerEmail:   "ada@example.com",
		CustomerName:    "Ada",
		ShippingAddress: shipping(),
	}
}

func TestCreateScenarioA(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	p1 := dbtest.SeedProduct(t, f.conn, store.ID, "P1", "19.99")

	res, err := f.svc.Create(context.Background(), createInput(cartFor(t, store, p1, 2, "19.99")))
	require.NoError(t, err)

	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("39.98")), res.TotalAmount.String())
	assert.True(t, res.CommissionAmount.Equal(decimal.RequireFromString("2.00")), res.CommissionAmount.String())
	assert.Equal(t, "acct_1", res.StripeAccountID)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[A-Z2-7]{6}$`), res.OrderNumber)

	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, order.Items[0].Total.Equal(decimal.RequireFromString("39.98")))
	assert.Equal(t, "US", order.BillingAddress.Country)
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)

	count, err := f.outbox.CountForAggregate(string(enums.EventOrderCreated), res.OrderID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateUsesLivePriceNotCartSnapshot(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "10.00", "acct_1")
	p := dbtest.SeedProduct(t, f.conn, store.ID, "P", "10.00")

	res, err := f.svc.Create(context.Background(), createInput(cartFor(t, store, p, 1, "0.01")))
	require.NoError(t, err)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, res.CommissionAmount.Equal(decimal.RequireFromString("1.00")))
}

func TestCommissionUnaffectedByLaterRateChange(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	p := dbtest.SeedProduct(t, f.conn, store.ID, "P", "100.00")

	res, err := f.svc.Create(context.Background(), createInput(cartFor(t, store, p, 1, "100.00")))
	require.NoError(t, err)

	require.NoError(t, f.conn.Model(&models.Store{}).Where("id = ?", store.ID).Update("commission_rate", decimal.RequireFromString("20.00")).Error)
	_, err = f.svc.ConfirmPayment(context.Background(), res.OrderID, "pi_1", enums.ConfirmationSourceWebhook)
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", res.OrderID).Error)
	assert.True(t, order.CommissionAmount.Equal(decimal.RequireFromString("5.00")))
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, createInput(cart.Cart{}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	noAccount := dbtest.SeedStore(t, f.conn, "5.00", "")
	p := dbtest.SeedProduct(t, f.conn, noAccount.ID, "P", "1.00")
	_, err = f.svc.Create(ctx, createInput(cartFor(t, noAccount, p, 1, "1.00")))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, pkgerrors.As(err).Message(), "not set up for payments")

	missing := models.Store{ID: uuid.New(), Name: "ghost"}
	_, err = f.svc.Create(ctx, createInput(cartFor(t, missing, p, 1, "1.00")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	foreign := dbtest.SeedProduct(t, f.conn, noAccount.ID, "Foreign", "1.00")
	_, err = f.svc.Create(ctx, createInput(cartFor(t, store, foreign, 1, "1.00")))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var orders int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	order := dbtest.SeedPendingOrder(t, f.conn, store.ID, "39.98", "2.00", time.Now().UTC())
	ctx := context.Background()

	first, err := f.svc.ConfirmPayment(ctx, order.ID, "pi_1", enums.ConfirmationSourceVerification)
	require.NoError(t, err)
	assert.True(t, first.Transitioned)
	assert.Equal(t, order.OrderNumber, first.OrderNumber)

	second, err := f.svc.ConfirmPayment(ctx, order.ID, "pi_other", enums.ConfirmationSourceWebhook)
	require.NoError(t, err)
	assert.False(t, second.Transitioned)

	var got models.Order
	require.NoError(t, f.conn.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	require.NotNil(t, got.StripePaymentIntentID)
	assert.Equal(t, "pi_1", *got.StripePaymentIntentID)
	assert.NotNil(t, got.PaidAt)

	count, err := f.outbox.CountForAggregate(string(enums.EventOrderPaid), order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, 1, f.rec.outcomes["verification/transitioned"])
	assert.Equal(t, 1, f.rec.outcomes["webhook/already_paid"])
}

func TestConfirmPaymentConcurrentCallersTransitionOnce(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	order := dbtest.SeedPendingOrder(t, f.conn, store.ID, "10.00", "0.50", time.Now().UTC())

	const callers = 8
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
		errs        []error
	)
	for i := 0; i < callers; i++ {
		source := enums.ConfirmationSourceWebhook
		if i%2 == 0 {
			source = enums.ConfirmationSourceVerification
		}
		wg.Add(1)
		go func(source enums.ConfirmationSource) {
			defer wg.Done()
			res, err := f.svc.ConfirmPayment(context.Background(), order.ID, "pi_race", source)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Transitioned {
				transitions++
			}
		}(source)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, transitions)
	count, err := f.outbox.CountForAggregate(string(enums.EventOrderPaid), order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmPayment(context.Background(), uuid.New(), "", enums.ConfirmationSourceWebhook)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGetScopesToCustomer(t *testing.T) {
	f := newFixture(t)
	store := dbtest.SeedStore(t, f.conn, "5.00", "acct_1")
	p := dbtest.SeedProduct(t, f.conn, store.ID, "P", "3.00")
	customer := uuid.New()

	input := createInput(cartFor(t, store, p, 3, "3.00"))
	input.CustomerID = &customer
	res, err := f.svc.Create(context.Background(), input)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), res.OrderID, customer)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)

	_, err = f.svc.Get(context.Background(), res.OrderID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPendingQueries(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	store := dbtest.SeedStore(t, conn, "5.00", "acct_1")
	now := time.Now().UTC()
	stale := dbtest.SeedPendingOrder(t, conn, store.ID, "1.00", "0.05", now.Add(-48*time.Hour))
	dbtest.SeedPendingOrder(t, conn, store.ID, "1.00", "0.05", now.Add(-time.Hour))

	cutoff := now.Add(-24 * time.Hour)
	count, err := repo.CountPendingBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	rows, err := repo.ListPendingBefore(context.Background(), cutoff, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

type flakyTx struct {
	inner txRunner
	fail  []error
	calls int
}

func (f *flakyTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		return err
	}
	return f.inner.WithTx(ctx, fn)
}

func newFlakyService(t *testing.T, conn *gorm.DB, tx *flakyTx) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       tx,
		Stores:   stores.NewRepository(conn),
		Products: products.NewRepository(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc
}

func TestCreateRegeneratesCollidingOrderNumber(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn, "5.00", "acct_1")
	p := dbtest.SeedProduct(t, conn, store.ID, "P", "4.00")
	collision := &pq.Error{Code: "23505", Constraint: "ux_orders_order_number"}
	tx := &flakyTx{inner: db.FromGorm(conn), fail: []error{collision}}

	res, err := newFlakyService(t, conn, tx).Create(context.Background(), createInput(cartFor(t, store, p, 1, "4.00")))
	require.NoError(t, err)
	assert.Equal(t, 2, tx.calls)
	assert.NotEmpty(t, res.OrderNumber)
}

func TestCreateDoesNotRetryOtherFailures(t *testing.T) {
	conn := dbtest.Open(t)
	store := dbtest.SeedStore(t, conn, "5.00", "acct_1")
	p := dbtest.SeedProduct(t, conn, store.ID, "P", "4.00")
	tx := &flakyTx{inner: db.FromGorm(conn), fail: []error{errors.New("connection reset")}}

	_, err := newFlakyService(t, conn, tx).Create(context.Background(), createInput(cartFor(t, store, p, 1, "4.00")))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 1, tx.calls)
}
