package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
)

type webhookEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *sql.DB, logger *zap.Logger) *webhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, webhook_id, shop, topic, outcome, error, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.WebhookID,
		event.Shop,
		event.Topic,
		event.Outcome,
		event.Error,
		event.ReceivedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create webhook event", zap.String("topic", event.Topic), zap.Error(err))
		return constraintError(err)
	}
	return nil
}

func (r *webhookEventRepository) ListByShop(ctx context.Context, shop string, outcome domain.WebhookOutcome, limit int) ([]*domain.WebhookEvent, error) {
	query := `
		SELECT id, webhook_id, shop, topic, outcome, error, received_at
		FROM webhook_events
		WHERE shop = $1 AND ($2 = '' OR outcome = $2)
		ORDER BY received_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, shop, string(outcome), limit)
	if err != nil {
		r.logger.Error("Failed to list webhook events", zap.String("shop", shop), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	events := []*domain.WebhookEvent{}
	for rows.Next() {
		var e domain.WebhookEvent
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.WebhookID, &e.Shop, &e.Topic, &e.Outcome, &errMsg, &e.ReceivedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			e.Error = &errMsg.String
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *webhookEventRepository) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE shop = $1`, shop)
	if err != nil {
		r.logger.Error("Failed to delete webhook events", zap.String("shop", shop), zap.Error(err))
		return 0, err
	}
	return result.RowsAffected()
}
