package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryHandler records each notification in the delivery ledger. The
// ledger is the hand-off point for downstream channels (push, email); the
// engine's contract ends at "queued for the member, at least once".
type DeliveryHandler struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewDeliveryHandler constructs a handler backed by the provided pool.
func NewDeliveryHandler(pool *pgxpool.Pool) *DeliveryHandler {
	return &DeliveryHandler{
		pool:   pool,
		logger: log.New(log.Writer(), "[delivery] ", log.LstdFlags),
	}
}

// Handle stores the notification in the notification_log table.
func (h *DeliveryHandler) Handle(ctx context.Context, msg Message) error {
	var body struct {
		Kind      string `json:"kind"`
		MemberID  string `json:"member_id"`
		BookingID string `json:"booking_id"`
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return fmt.Errorf("malformed notification payload: %w", err)
	}

	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO notification_log (tenant_id, event_type, member_id, booking_id, session_id, message, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		msg.TenantID,
		msg.EventType,
		body.MemberID,
		body.BookingID,
		body.SessionID,
		body.Message,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}

	h.logger.Printf("delivered %s to member %s", msg.EventType, body.MemberID)
	return nil
}
