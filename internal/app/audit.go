package app

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

// recordAudit writes an audit entry. Failures are logged, never returned.
func recordAudit(ctx context.Context, repo store.Repository, logger *zap.Logger, actor *uuid.UUID, action, entityType string, entityID uuid.UUID, details map[string]any) {
	entry := domain.AuditLog{UserID: actor, Action: action, EntityType: entityType, EntityID: &entityID}
	if details != nil {
		entry.Details, _ = json.Marshal(details)
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

// publishEvent publishes to the events exchange when a publisher is wired.
func publishEvent(ctx context.Context, publisher rabbitmq.Publisher, logger *zap.Logger, routingKey string, event any) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, routingKey, event); err != nil {
		logger.Warn("failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
