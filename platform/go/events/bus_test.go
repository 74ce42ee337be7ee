package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBusDispatchesInPublishOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, zaptest.NewLogger(t))

	var mu sync.Mutex
	var got []string
	bus.Subscribe("recorder", HandlerFunc(func(_ context.Context, evt DomainEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, evt.Type)
		return nil
	}))
	bus.Subscribe("failing", HandlerFunc(func(context.Context, DomainEvent) error {
		return errors.New("boom")
	}))

	bus.Start(context.Background())
	bus.Publish(context.Background(), New(PaymentScheduled, "scheduled", nil, Payment("p-1")))
	bus.Publish(context.Background(), New(PaymentPartial, "partial", nil, Payment("p-1")))
	bus.Publish(context.Background(), New(PaymentReceived, "received", nil, Payment("p-1")))
	bus.Stop()

	require.Equal(t, []string{PaymentScheduled, PaymentPartial, PaymentReceived}, got)
}

func TestBusPublishAfterStopIsDropped(t *testing.T) {
	t.Parallel()

	bus := NewBus(1, nil)
	bus.Start(context.Background())
	bus.Stop()

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), New(LeaseCreated, "created", nil))
	})
}

func TestBusRefusesEventsOnceContextCancelled(t *testing.T) {
	t.Parallel()

	bus := NewBus(4, zaptest.NewLogger(t))
	var mu sync.Mutex
	var handled int
	bus.Subscribe("counter", HandlerFunc(func(context.Context, DomainEvent) error {
		mu.Lock()
		defer mu.Unlock()
		handled++
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	cancel()
	<-bus.done

	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), New(PaymentLate, "late", nil, Payment("p-1")))
	}
	require.Zero(t, len(bus.events), "nothing may queue behind a stopped consumer")

	mu.Lock()
	require.Zero(t, handled)
	mu.Unlock()

	require.NotPanics(t, bus.Stop)
}

func TestNewEncodesPayloadAndRefs(t *testing.T) {
	t.Parallel()

	evt := New(DepositRefunded, "deposit refunded", map[string]string{"refundAmount": "150000"},
		Contract("LC-2025-0000ABCD"), Payment("p-1"), Tenant("t-1"))

	require.NotEmpty(t, evt.ID)
	require.Equal(t, "LC-2025-0000ABCD", evt.SubjectID("lease_contract"))
	require.Equal(t, "p-1", evt.SubjectID("rent_payment"))
	require.Empty(t, evt.SubjectID("property"))
	require.JSONEq(t, `{"refundAmount":"150000"}`, string(evt.Payload))
}

func TestCollector(t *testing.T) {
	t.Parallel()

	var c Collector
	c.Publish(context.Background(), New(LeaseCreated, "a", nil))
	c.Publish(context.Background(), New(LeaseRenewed, "b", nil))
	require.Equal(t, []string{LeaseCreated, LeaseRenewed}, c.Types())
	require.Len(t, c.Events(), 2)
}
