package purchases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"video-learning-backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const completedTTL = 24 * time.Hour

// StatusCache remembers completed purchases. A completed row never reverts,
// so only positive results are stored.
type StatusCache interface {
	GetCompleted(ctx context.Context, userID, videoID string) (*domain.Purchase, bool)
	PutCompleted(ctx context.Context, p *domain.Purchase)
}

// RedisStatusCache stores completed purchases as JSON. A nil client disables it.
type RedisStatusCache struct {
	RDB *redis.Client
}

func completedKey(userID, videoID string) string {
	return fmt.Sprintf("purchase:completed:%s:%s", userID, videoID)
}

func (c *RedisStatusCache) GetCompleted(ctx context.Context, userID, videoID string) (*domain.Purchase, bool) {
	if c == nil || c.RDB == nil {
		return nil, false
	}
	raw, err := c.RDB.Get(ctx, completedKey(userID, videoID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("purchase status cache read failed")
		}
		return nil, false
	}
	var p domain.Purchase
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, p.IsCompleted()
}

func (c *RedisStatusCache) PutCompleted(ctx context.Context, p *domain.Purchase) {
	if c == nil || c.RDB == nil || !p.IsCompleted() {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.RDB.Set(ctx, completedKey(p.UserID.String(), p.VideoID), raw, completedTTL).Err(); err != nil {
		log.Warn().Err(err).Str("purchase_id", p.ID.String()).Msg("purchase status cache write failed")
	}
}
