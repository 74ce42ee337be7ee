// Package events carries the domain events emitted by the lease and payment
// services. The engine never sends notifications itself; an external notifier
// subscribes to the bus and fans events out over its own channels.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	LeaseCreated    = "lease.created"
	LeaseRenewed    = "lease.renewed"
	LeaseTerminated = "lease.terminated"
	LeaseExpired    = "lease.expired"

	PaymentScheduled      = "payment.scheduled"
	PaymentReceived       = "payment.received"
	PaymentPartial        = "payment.partial"
	PaymentReversed       = "payment.reversed"
	PaymentLate           = "payment.late"
	PaymentLateFeeApplied = "payment.late_fee_applied"
	PaymentLateFeeWaived  = "payment.late_fee_waived"
	PaymentRentRevised    = "payment.rent_revised"

	DepositRefundRequested = "deposit.refund.requested"
	DepositRefundApproved  = "deposit.refund.approved"
	DepositRefunded        = "deposit.refunded"
	DepositRefundRefused   = "deposit.refund.refused"
)

// Ref points at an entity touched by an event.
type Ref struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Contract, Payment, Property and Tenant build refs for the usual roles.
func Contract(id string) Ref { return Ref{Type: "lease_contract", ID: id, Role: "subject"} }
func Payment(id string) Ref  { return Ref{Type: "rent_payment", ID: id, Role: "subject"} }
func Property(id string) Ref { return Ref{Type: "property", ID: id, Role: "context"} }
func Tenant(id string) Ref   { return Ref{Type: "tenant", ID: id, Role: "related"} }

// DomainEvent is the canonical shape of every event.
type DomainEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Refs       []Ref           `json:"refs"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh id. The payload is JSON encoded; encoding
// failures leave the payload empty.
func New(eventType, summary string, payload any, refs ...Ref) DomainEvent {
	var raw json.RawMessage
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			raw = b
		}
	}
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Refs:       refs,
		Summary:    summary,
		Payload:    raw,
	}
}

// SubjectID returns the id of the first ref with the given entity type.
func (e DomainEvent) SubjectID(entityType string) string {
	for _, r := range e.Refs {
		if r.Type == entityType {
			return r.ID
		}
	}
	return ""
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(context.Context, DomainEvent) {}

// Collector keeps published events in memory.
type Collector struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (c *Collector) Publish(_ context.Context, evt DomainEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

// Events returns a copy of everything collected so far.
func (c *Collector) Events() []DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DomainEvent(nil), c.events...)
}

// Types returns the collected event types in publish order.
func (c *Collector) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}
