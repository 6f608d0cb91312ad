// Package worker provides async processing of scored claims.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/opensource-insurance/heron/internal/domain"
)

// Notifier consumes scored-claim events from the EventBus and raises
// alerts for claims classified as fraudulent. Scoring never waits on
// it; alerting is asynchronous by construction.
type Notifier struct {
	bus  domain.EventBus
	repo domain.Repository

	subscriptions []domain.Subscription
	processed     atomic.Int64
	alerted       atomic.Int64
	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewNotifier creates an alert notifier. The repository may be nil;
// it is only used to refresh claim status on alerts.
func NewNotifier(bus domain.EventBus, repo domain.Repository) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the scored-claim topic.
func (n *Notifier) Start() error {
	sub, err := n.bus.Subscribe(n.ctx, domain.TopicClaimScored, n.handleScored)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.subscriptions = append(n.subscriptions, sub)
	n.mu.Unlock()

	slog.Info("alert notifier started",
		"topic", domain.TopicClaimScored,
	)
	return nil
}

// handleScored inspects a scored claim and publishes an alert when the
// claim is classified fraudulent.
func (n *Notifier) handleScored(ctx context.Context, msg *domain.Message) error {
	var event domain.ClaimScoredEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse scored claim event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	n.processed.Add(1)

	slog.Debug("claim scored",
		"claim_id", event.ClaimID,
		"fraud_score", event.FraudScore,
		"model_version", event.ModelVersion,
	)

	if !event.IsFraudulent {
		return nil
	}

	n.alerted.Add(1)

	slog.Warn("fraudulent claim detected",
		"claim_id", event.ClaimID,
		"owner_id", event.OwnerID,
		"fraud_score", event.FraudScore,
		"reserve_estimate", event.ReserveEstimate,
	)

	if err := n.bus.Publish(ctx, domain.TopicClaimAlert, msg.Payload); err != nil {
		slog.Error("failed to publish claim alert",
			"claim_id", event.ClaimID,
			"error", err,
		)
		return err
	}

	return nil
}

// Stop gracefully stops the notifier.
func (n *Notifier) Stop() error {
	n.cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	n.subscriptions = nil

	slog.Info("alert notifier stopped")
	return nil
}

// Stats holds notifier counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Alerted   int64 `json:"alerted"`
}

// GetStats returns current notifier statistics.
func (n *Notifier) GetStats() Stats {
	return Stats{
		Processed: n.processed.Load(),
		Alerted:   n.alerted.Load(),
	}
}
