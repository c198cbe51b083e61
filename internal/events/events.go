package events

import (
	"context"
	"log/slog"
	"time"
)

// TransactionCompleted is emitted after a transaction's unit of work commits.
type TransactionCompleted struct {
	TransactionID        string    `json:"transaction_id"`
	Type                 string    `json:"type"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	SourceAccountID      string    `json:"source_account_id,omitempty"`
	DestinationAccountID string    `json:"destination_account_id,omitempty"`
	CompletedAt          time.Time `json:"completed_at"`
}

// Publisher delivers completed-transaction events to downstream consumers.
// Publishing is best effort and never affects the committed transaction.
type Publisher interface {
	Publish(ctx context.Context, event TransactionCompleted) error
}

// LogPublisher writes events to the structured logger. It is the default
// publisher when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a logging publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event TransactionCompleted) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("transaction completed",
		"transaction_id", event.TransactionID,
		"type", event.Type,
		"amount", event.Amount,
		"currency", event.Currency,
	)
	return nil
}
