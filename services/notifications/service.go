package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studiomanager_go/config"
	"studiomanager_go/database"
	"studiomanager_go/models"
	"studiomanager_go/utils"
)

// Queued notification payload stored in Redis. Kept minimal: one payload
// may fan out to many users. The database write is the source of truth;
// if Redis is down the service falls back to a direct insert.
type queuedNotification struct {
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Channels  []string  `json:"channels,omitempty"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// Service exposes notification creation with optional Redis queueing and
// WebSocket push. Core flows treat it as fire-and-forget.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub
}

// WSHub interface for WebSocket broadcasting
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// defaultHub lets services created in different parts of the app (e.g. the
// sweep scheduler) broadcast over the same hub without manual wiring.
var defaultHub WSHub

// SetDefaultWSHub sets the package-level default WebSocket hub used by new Service instances.
func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
	}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

// normalizeChannels keeps only allowed values and ensures default channel
func normalizeChannels(in []string) []string {
	if len(in) == 0 {
		return []string{"normal"}
	}
	allowed := map[string]struct{}{"normal": {}, "popup": {}, "email": {}}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, ch := range in {
		if _, ok := allowed[ch]; ok {
			if _, dup := seen[ch]; !dup {
				out = append(out, ch)
				seen[ch] = struct{}{}
			}
		}
	}
	if len(out) == 0 {
		out = []string{"normal"}
	}
	return out
}

// Queued builds a payload for EnqueueOrCreate.
func Queued(title, message, typ string, channels ...string) queuedNotification {
	return queuedNotification{Title: title, Message: message, Type: typ, Channels: normalizeChannels(channels)}
}

// QueuedWithData attaches a structured data payload (deep-links/actions).
func QueuedWithData(title, message, typ string, data any, channels ...string) queuedNotification {
	return queuedNotification{Title: title, Message: message, Type: typ, Channels: normalizeChannels(channels), Data: data}
}

// EnqueueOrCreate stores notifications using the Redis queue if enabled,
// else inserts directly.
func (s *Service) EnqueueOrCreate(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil // queued successfully
		} else {
			logrus.WithError(err).Warn("Redis queue failed, falling back to direct notification insert")
		}
	}

	// fallback: direct db insert
	return s.createDirect(userIDs, n)
}

// createDirect writes directly to DB (used by worker or fallback).
func (s *Service) createDirect(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return nil
	}

	channelsJSON, err := json.Marshal(normalizeChannels(n.Channels))
	if err != nil {
		channelsJSON = []byte(`["normal"]`)
	}
	var dataJSON []byte
	if n.Data != nil {
		if b, err2 := json.Marshal(n.Data); err2 == nil {
			dataJSON = b
		}
	}

	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:   uid,
			Title:    n.Title,
			Message:  n.Message,
			Type:     n.Type,
			Read:     false,
			Channels: channelsJSON,
			Data:     dataJSON,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	// Push over WebSocket if a hub is wired
	if s.wsHub != nil {
		for _, notif := range notifs {
			s.db.Preload("User").First(&notif, notif.ID)
			dto := utils.ToNotificationDTO(notif)
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": dto,
			})
		}
	}

	return nil
}

// StartWorker starts a background worker polling the Redis queue and
// flushing batches to the database.
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		logrus.Info("Redis notifications disabled; worker not started")
		return
	}
	go func() {
		logrus.Info("Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		batchSize := 200
		for {
			select {
			case <-stop:
				logrus.Info("Notification worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, batchSize)
			}
		}
	}()
}

// flushBatch polls the redis queue and processes notifications in batches.
func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	for i := 0; i < 5; i++ { // up to 5 sub-batches per tick
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		// Trim immediately to avoid duplicates (best-effort)
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			logrus.WithError(err).Warn("Notification queue trim failed")
		}
		for _, raw := range vals {
			var q queuedNotification
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q.UserIDs, q); err != nil {
				logrus.WithError(err).Error("Notification DB insert failed")
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}
