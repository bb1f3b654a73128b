package badger

import (
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// badgerLoggerAdapter routes badger's printf-style logs into zap. Badger's own info chatter
// (compactions, value log replays) is demoted to debug.
type badgerLoggerAdapter struct {
	logger *zap.Logger
}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func (b *badgerLoggerAdapter) Errorf(format string, args ...interface{}) {
	b.logger.Sugar().Errorf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Warningf(format string, args ...interface{}) {
	b.logger.Sugar().Warnf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Infof(format string, args ...interface{}) {
	b.logger.Sugar().Debugf(strings.TrimSuffix(format, "\n"), args...)
}

func (b *badgerLoggerAdapter) Debugf(format string, args ...interface{}) {
	b.logger.Sugar().Debugf(strings.TrimSuffix(format, "\n"), args...)
}
