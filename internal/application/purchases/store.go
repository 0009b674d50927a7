package purchases

import (
	"context"
	"errors"
	"time"

	"video-learning-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists purchases and reads the video catalog.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	FindVideo(ctx context.Context, videoID string) (*domain.Video, error)
	FindByPair(ctx context.Context, userID uuid.UUID, videoID string) (*domain.Purchase, error)
	// UpsertPending inserts p or replaces a pending row for the same pair.
	// It reports false when a completed row holds the pair and nothing was written.
	UpsertPending(ctx context.Context, p *domain.Purchase) (bool, error)
	// MarkCompleted promotes the row matching both intent and user; returns
	// ErrPurchaseNotFound when no row matches.
	MarkCompleted(ctx context.Context, intentID string, userID uuid.UUID, snapshot []byte) (*domain.Purchase, error)
}

// GormStore is the Store backed by the relational database.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) FindVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	var v domain.Video
	if err := s.DB.WithContext(ctx).Where("id = ?", videoID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (s *GormStore) FindByPair(ctx context.Context, userID uuid.UUID, videoID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) UpsertPending(ctx context.Context, p *domain.Purchase) (bool, error) {
	p.Status = domain.PurchaseStatusPending
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"id", "stripe_payment_intent_id", "amount", "currency", "status", "created_at", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "purchases", Name: "status"}, Value: string(domain.PurchaseStatusPending)},
		}},
	}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MarkCompleted(ctx context.Context, intentID string, userID uuid.UUID, snapshot []byte) (*domain.Purchase, error) {
	var out domain.Purchase
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     string(domain.PurchaseStatusCompleted),
			"updated_at": time.Now().UTC(),
		}
		if len(snapshot) > 0 {
			updates["gateway_snapshot"] = datatypes.JSON(snapshot)
		}
		res := tx.Model(&domain.Purchase{}).
			Where("stripe_payment_intent_id = ? AND user_id = ?", intentID, userID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPurchaseNotFound
		}
		return tx.Where("stripe_payment_intent_id = ?", intentID).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
