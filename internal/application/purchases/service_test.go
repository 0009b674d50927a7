package purchases

import (
	"context"
	"errors"
	"testing"

	"video-learning-backend/internal/domain"
	"video-learning-backend/internal/infrastructure/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db  *gorm.DB
	gw  *fakeGateway
	mr  *miniredis.Miniredis
	svc *Service
}

func setupService(t *testing.T) *testEnv {
	db := setupDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	gw := newFakeGateway()
	svc := &Service{
		Store:    &GormStore{DB: db},
		Gateway:  gw,
		Cache:    &RedisStatusCache{RDB: rdb},
		Currency: "JPY",
	}
	seedVideo(t, db, "v1", 1000)
	return &testEnv{db: db, gw: gw, mr: mr, svc: svc}
}

func (e *testEnv) rows(t *testing.T, videoID string) []domain.Purchase {
	t.Helper()
	var out []domain.Purchase
	require.NoError(t, e.db.Where("video_id = ?", videoID).Find(&out).Error)
	return out
}

func TestCreateIntent_NewPair_WritesPendingRow(t *testing.T) {
	env := setupService(t)

	res, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	assert.Equal(t, "pi_test_1", res.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", res.ClientSecret)

	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, res.PaymentIntentID, rows[0].StripePaymentIntentID)
	assert.Equal(t, domain.PurchaseStatusPending, rows[0].Status)
	assert.Equal(t, int64(1000), rows[0].Amount)
	assert.Equal(t, "jpy", rows[0].Currency)

	req := env.gw.requests[0]
	assert.Equal(t, int64(1000), req.Amount)
	assert.Equal(t, "jpy", req.Currency)
	assert.Equal(t, "v1", req.Metadata["videoId"])
	assert.Equal(t, testUserID, req.Metadata["userId"])
	assert.Equal(t, "Go入門 v1", req.Metadata["videoTitle"])
}

func TestCreateIntent_InvalidInput(t *testing.T) {
	env := setupService(t)
	cases := []CreateIntentInput{
		{VideoID: "", UserID: testUserID},
		{VideoID: "v1", UserID: ""},
		{VideoID: "v1", UserID: "user-1"},
	}
	for _, in := range cases {
		_, err := env.svc.CreateIntent(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Equal(t, 0, env.gw.created())
}

func TestCreateIntent_VideoNotFound(t *testing.T) {
	env := setupService(t)
	_, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "missing", UserID: testUserID})
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.Equal(t, CodeNotFound, Code(err))
	assert.Equal(t, 0, env.gw.created())
}

func TestCreateIntent_NotConfigured(t *testing.T) {
	env := setupService(t)
	env.svc.Gateway = nil
	_, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "v1", UserID: testUserID})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, CodeNotConfigured, Code(err))
}

func TestCreateIntent_ProviderFailure_WritesNothing(t *testing.T) {
	env := setupService(t)
	env.gw.createErr = errors.New("card_declined")

	_, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "v1", UserID: testUserID})
	assert.ErrorIs(t, err, ErrPaymentProvider)
	assert.Empty(t, env.rows(t, "v1"))
}

func TestCreateIntent_CompletedPair_AlwaysAlreadyPurchased(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	env.gw.succeed(res.PaymentIntentID)
	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
		assert.ErrorIs(t, err, ErrAlreadyPurchased)
		assert.Equal(t, CodeAlreadyPurchased, Code(err))
	}
	assert.Equal(t, 1, env.gw.created())
	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.PurchaseStatusCompleted, rows[0].Status)
}

func TestCreateIntent_PendingPair_ReplacedByNewIntent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	first, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	second, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	assert.NotEqual(t, first.PaymentIntentID, second.PaymentIntentID)

	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, second.PaymentIntentID, rows[0].StripePaymentIntentID)
	assert.Equal(t, domain.PurchaseStatusPending, rows[0].Status)
}

func TestCreateIntent_OtherUsersAreIndependent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	_, err = env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: otherUserID})
	require.NoError(t, err)
	assert.Len(t, env.rows(t, "v1"), 2)
}

func TestCreateIntent_IdempotencyKeyReusesIntent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	in := CreateIntentInput{VideoID: "v1", UserID: testUserID, IdempotencyKey: "checkout-abc"}

	first, err := env.svc.CreateIntent(ctx, in)
	require.NoError(t, err)
	retry, err := env.svc.CreateIntent(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentIntentID, retry.PaymentIntentID)
	assert.Equal(t, 1, env.gw.created())
	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, first.PaymentIntentID, rows[0].StripePaymentIntentID)
}

// staleReadStore hides the existing row from the pre-check, as when a
// completion commits between the lookup and the upsert.
type staleReadStore struct {
	Store
}

func (staleReadStore) FindByPair(context.Context, uuid.UUID, string) (*domain.Purchase, error) {
	return nil, nil
}

func TestCreateIntent_CompletionRace_LeavesCompletedRowUntouched(t *testing.T) {
	env := setupService(t)
	require.NoError(t, env.db.Create(&domain.Purchase{
		UserID:                uuid.MustParse(testUserID),
		VideoID:               "v1",
		StripePaymentIntentID: "pi_done",
		Amount:                1000,
		Currency:              "jpy",
		Status:                domain.PurchaseStatusCompleted,
	}).Error)
	env.svc.Store = staleReadStore{Store: env.svc.Store}

	_, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "v1", UserID: testUserID})
	assert.ErrorIs(t, err, ErrAlreadyPurchased)

	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, "pi_done", rows[0].StripePaymentIntentID)
	assert.Equal(t, domain.PurchaseStatusCompleted, rows[0].Status)
}

func TestConfirm_Twice_CompletesOneRow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	env.gw.succeed(res.PaymentIntentID)

	for i := 0; i < 2; i++ {
		p, err := env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
		require.NoError(t, err)
		assert.Equal(t, domain.PurchaseStatusCompleted, p.Status)
	}
	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.PurchaseStatusCompleted, rows[0].Status)
	assert.NotEmpty(t, rows[0].GatewaySnapshot)
	assert.Contains(t, string(rows[0].GatewaySnapshot), res.PaymentIntentID)
	assert.NotContains(t, string(rows[0].GatewaySnapshot), res.ClientSecret)
}

func TestConfirm_NotSucceeded_LeavesRowPending(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)
	assert.Equal(t, CodePaymentNotCompleted, Code(err))

	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.PurchaseStatusPending, rows[0].Status)
	assert.NotContains(t, string(rows[0].GatewaySnapshot), "succeeded")
}

func TestConfirm_OtherUsersIntent_NotFound(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	env.gw.succeed(res.PaymentIntentID)

	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, otherUserID)
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
	assert.Equal(t, domain.PurchaseStatusPending, env.rows(t, "v1")[0].Status)
}

func TestConfirm_ValidationAndProviderErrors(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.Confirm(ctx, "", testUserID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.svc.Confirm(ctx, "pi_x", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.Confirm(ctx, "pi_unknown", testUserID)
	assert.ErrorIs(t, err, ErrPaymentProvider)
	assert.Equal(t, CodePaymentProvider, Code(err))
}

func TestReconcile_UsesIntentMetadata(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)

	_, err = env.svc.Reconcile(ctx, res.PaymentIntentID)
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)

	env.gw.succeed(res.PaymentIntentID)
	p, err := env.svc.Reconcile(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, p.UserID.String())
	assert.True(t, p.IsCompleted())
}

func TestStatus_OnlyCompletedCounts(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, ok, err := env.svc.Status(ctx, "v1", testUserID)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	p, ok, err := env.svc.Status(ctx, "v1", testUserID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)

	env.gw.succeed(res.PaymentIntentID)
	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
	require.NoError(t, err)
	p, ok, err = env.svc.Status(ctx, "v1", testUserID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.PaymentIntentID, p.StripePaymentIntentID)
}

func TestStatus_ServesCompletedFromCache(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	env.gw.succeed(res.PaymentIntentID)
	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
	require.NoError(t, err)

	assert.True(t, env.mr.Exists("purchase:completed:"+testUserID+":v1"))
	require.NoError(t, env.db.Where("video_id = ?", "v1").Delete(&domain.Purchase{}).Error)

	_, ok, err := env.svc.Status(ctx, "v1", testUserID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatus_WithoutCache(t *testing.T) {
	env := setupService(t)
	env.svc.Cache = nil

	_, ok, err := env.svc.Status(context.Background(), "v1", testUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatus_MissingParams(t *testing.T) {
	env := setupService(t)
	_, _, err := env.svc.Status(context.Background(), "", testUserID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = env.svc.Status(context.Background(), "v1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCode_UnknownErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, Code(errors.New("boom")))
}

// failingUpsertStore fails every pending write, as when the database drops
// the connection after the intent was created.
type failingUpsertStore struct {
	Store
}

func (failingUpsertStore) UpsertPending(context.Context, *domain.Purchase) (bool, error) {
	return false, errors.New("connection reset by peer")
}

// failingCompleteStore fails the completion write.
type failingCompleteStore struct {
	Store
}

func (failingCompleteStore) MarkCompleted(context.Context, string, uuid.UUID, []byte) (*domain.Purchase, error) {
	return nil, errors.New("connection reset by peer")
}

func orphanedIntents(t *testing.T) float64 {
	metrics.MustRegister()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "purchase_orphaned_intents_total" && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestCreateIntent_StoreFailureAfterIntent_IsStorageError(t *testing.T) {
	env := setupService(t)
	env.svc.Store = failingUpsertStore{Store: env.svc.Store}
	before := orphanedIntents(t)

	_, err := env.svc.CreateIntent(context.Background(), CreateIntentInput{VideoID: "v1", UserID: testUserID})
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, CodeStorage, Code(err))
	assert.Equal(t, 1, env.gw.created())
	assert.Empty(t, env.rows(t, "v1"))
	assert.Equal(t, before+1, orphanedIntents(t))
}

func TestConfirm_StoreFailure_IsStorageError(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.CreateIntent(ctx, CreateIntentInput{VideoID: "v1", UserID: testUserID})
	require.NoError(t, err)
	env.gw.succeed(res.PaymentIntentID)
	env.svc.Store = failingCompleteStore{Store: env.svc.Store}

	_, err = env.svc.Confirm(ctx, res.PaymentIntentID, testUserID)
	assert.ErrorIs(t, err, ErrStorage)

	rows := env.rows(t, "v1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.PurchaseStatusPending, rows[0].Status)
}
