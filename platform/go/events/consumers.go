package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/storage"
)

// LogConsumer writes every event through zap. It is the default sink when no
// external notifier is attached.
type LogConsumer struct {
	Logger *zap.Logger
}

func (c LogConsumer) HandleEvent(_ context.Context, evt DomainEvent) error {
	logger := c.Logger
	if logger == nil {
		return nil
	}
	logger.Info("domain event",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.Time("occurred_at", evt.OccurredAt),
		zap.String("contract_id", evt.SubjectID("lease_contract")),
		zap.String("payment_id", evt.SubjectID("rent_payment")),
		zap.String("summary", evt.Summary),
	)
	return nil
}

// DocumentRequest is the JSON document dropped in the store for the external
// renderer that produces receipts and deposit statements.
type DocumentRequest struct {
	Kind        string          `json:"kind"`
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	RequestedAt time.Time       `json:"requestedAt"`
	ContractID  string          `json:"contractId"`
	PaymentID   string          `json:"paymentId"`
	Summary     string          `json:"summary"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// DocumentConsumer writes a document request for every fully received payment
// and every refunded deposit. Other events are ignored.
type DocumentConsumer struct {
	Store storage.DocumentStore
}

func (c DocumentConsumer) HandleEvent(ctx context.Context, evt DomainEvent) error {
	var kind, key string
	contractID := evt.SubjectID("lease_contract")
	paymentID := evt.SubjectID("rent_payment")

	switch evt.Type {
	case PaymentReceived:
		kind, key = "rent_receipt", storage.ReceiptKey(contractID, paymentID)
	case DepositRefunded:
		kind, key = "deposit_statement", storage.DepositStatementKey(contractID, paymentID)
	default:
		return nil
	}
	if paymentID == "" {
		return fmt.Errorf("%s event %s has no payment ref", evt.Type, evt.ID)
	}

	body, err := json.Marshal(DocumentRequest{
		Kind:        kind,
		EventID:     evt.ID,
		EventType:   evt.Type,
		RequestedAt: evt.OccurredAt,
		ContractID:  contractID,
		PaymentID:   paymentID,
		Summary:     evt.Summary,
		Payload:     evt.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode document request: %w", err)
	}

	if _, err := c.Store.Put(ctx, key, "application/json", body); err != nil {
		return fmt.Errorf("store %s: %w", kind, err)
	}
	return nil
}
