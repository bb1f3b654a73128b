package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event Event) error {
	switch e := event.(type) {
	case *SignerTransferred:
		s.logger.Sugar().Infow("Signer transferred",
			"account", e.Account.Hex(),
			"entityId", e.EntityId,
			"previousSigner", e.PreviousSigner.Hex(),
			"newSigner", e.NewSigner.Hex(),
		)
	case *OwnershipUpdated:
		s.logger.Sugar().Infow("Ownership updated",
			"account", e.Account.Hex(),
			"entityId", e.EntityId,
			"added", len(e.AddedOwners),
			"removed", len(e.RemovedOwners),
			"threshold", e.Threshold,
		)
	default:
		s.logger.Sugar().Infow("Event", "type", event.Type(), "key", event.PartitionKey())
	}
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
