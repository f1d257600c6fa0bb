package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"osgb/internal/models"
	"osgb/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Visit event actions.
const (
	VisitCreated = "visit.created"
	VisitUpdated = "visit.updated"
	VisitDeleted = "visit.deleted"
)

// VisitEvent is pushed to realtime subscribers after a visit log write.
type VisitEvent struct {
	ID         string             `json:"id"`
	Action     string             `json:"action"`
	TenantID   uint               `json:"tenant_id"`
	Visit      models.VisitRecord `json:"visit"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// NewVisitEvent stamps an event with a fresh id.
func NewVisitEvent(action string, visit models.VisitRecord) VisitEvent {
	return VisitEvent{
		ID:         uuid.NewString(),
		Action:     action,
		TenantID:   visit.TenantID,
		Visit:      visit,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher delivers visit events. Delivery is fire-and-forget: an
// implementation logs its own failures and never blocks the caller's result.
type EventPublisher interface {
	PublishVisitChanged(ctx context.Context, event VisitEvent)
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishVisitChanged(context.Context, VisitEvent) {}

// RedisEventBus publishes visit events on a per-tenant redis channel.
type RedisEventBus struct {
	client *redis.Client
	prefix string
	log    *logrus.Logger
}

func NewRedisEventBus(client *redis.Client, prefix string) *RedisEventBus {
	if prefix == "" {
		prefix = "osgb"
	}
	return &RedisEventBus{client: client, prefix: prefix, log: logger.GetLogger()}
}

// VisitChannel is the channel carrying a tenant's visit events.
func (b *RedisEventBus) VisitChannel(tenantID uint) string {
	return fmt.Sprintf("%s:visits:%d", b.prefix, tenantID)
}

func (b *RedisEventBus) PublishVisitChanged(ctx context.Context, event VisitEvent) {
	fields := logrus.Fields{
		"event_id":  event.ID,
		"action":    event.Action,
		"tenant_id": event.TenantID,
		"visit_id":  event.Visit.ID,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.log.WithFields(fields).WithError(err).Error("Failed to encode visit event")
		return
	}
	if err := b.client.Publish(ctx, b.VisitChannel(event.TenantID), payload).Err(); err != nil {
		b.log.WithFields(fields).WithError(err).Warn("Failed to publish visit event")
		return
	}
	b.log.WithFields(fields).Debug("Visit event published")
}

// Subscribe opens a subscription to a tenant's visit channel.
func (b *RedisEventBus) Subscribe(ctx context.Context, tenantID uint) *redis.PubSub {
	return b.client.Subscribe(ctx, b.VisitChannel(tenantID))
}
