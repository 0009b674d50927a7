package purchases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"video-learning-backend/internal/application/payments"
	"video-learning-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testUserID  = "11111111-1111-1111-1111-111111111111"
	otherUserID = "22222222-2222-4222-8222-222222222222"
)

// fakeGateway stands in for the payment provider. Intents start in
// requires_payment_method and are settled with succeed().
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	intents   map[string]*payments.Intent
	byKey     map[string]string
	requests  []payments.IntentRequest
	createErr error
	getErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: map[string]*payments.Intent{}, byKey: map[string]string{}}
}

func (f *fakeGateway) CreateIntent(_ context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if id, ok := f.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return f.intents[id], nil
	}
	f.seq++
	f.requests = append(f.requests, req)
	id := fmt.Sprintf("pi_test_%d", f.seq)
	pi := &payments.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}
	f.intents[id] = pi
	if req.IdempotencyKey != "" {
		f.byKey[req.IdempotencyKey] = id
	}
	return pi, nil
}

func (f *fakeGateway) RetrieveIntent(_ context.Context, id string) (*payments.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	pi, ok := f.intents[id]
	if !ok {
		return nil, errors.New("No such payment_intent")
	}
	cp := *pi
	return &cp, nil
}

func (f *fakeGateway) RetrieveSession(context.Context, string) (*payments.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) CreateCheckoutSession(context.Context, payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = payments.IntentStatusSucceeded
}

func (f *fakeGateway) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Video{}, &domain.Purchase{}))
	return db
}

func seedVideo(t *testing.T, db *gorm.DB, id string, price int64) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Video{
		ID: id, Title: "Go入門 " + id, Price: price, VideoURL: "https://cdn.example.com/" + id + ".mp4",
	}).Error)
}
