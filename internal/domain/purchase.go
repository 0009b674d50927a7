package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

// Purchase is one user's claim on one video. The (user_id, video_id) pair is unique:
// a pending row is replaced in place by a new attempt, a completed row is final.
type Purchase struct {
	ID                    uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID                uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_purchases_user_video,priority:1" json:"user_id"`
	VideoID               string         `gorm:"column:video_id;not null;uniqueIndex:idx_purchases_user_video,priority:2" json:"video_id"`
	StripePaymentIntentID string         `gorm:"column:stripe_payment_intent_id;uniqueIndex;not null" json:"stripe_payment_intent_id"`
	Amount                int64          `gorm:"column:amount;not null" json:"amount"`
	Currency              string         `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	Status                PurchaseStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	GatewaySnapshot       datatypes.JSON `gorm:"column:gateway_snapshot;type:jsonb" json:"-"`
	CreatedAt             time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Purchase) TableName() string {
	return "purchases"
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsCompleted reports whether payment for this purchase was verified with the gateway.
func (p *Purchase) IsCompleted() bool {
	return p != nil && p.Status == PurchaseStatusCompleted
}
