package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Video is a catalog entry. Price is in the smallest unit of the platform currency.
type Video struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Title        string    `gorm:"column:title;not null" json:"title"`
	Description  string    `gorm:"column:description" json:"description"`
	Price        int64     `gorm:"column:price;not null" json:"price"`
	Instructor   string    `gorm:"column:instructor_name" json:"instructor"`
	Category     string    `gorm:"column:category" json:"category"`
	Level        string    `gorm:"column:level" json:"level"`
	Duration     int       `gorm:"column:duration" json:"duration"`
	VideoKey     string    `gorm:"column:video_key" json:"video_key"`
	VideoURL     string    `gorm:"column:video_url;not null" json:"video_url"`
	ThumbnailKey *string   `gorm:"column:thumbnail_key" json:"thumbnail_key"`
	ThumbnailURL *string   `gorm:"column:thumbnail_url" json:"thumbnail_url"`
	UserID       string    `gorm:"column:user_id;index" json:"user_id"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Video) TableName() string {
	return "videos"
}

func (v *Video) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
