package input

import (
	"go.uber.org/zap"
)

// LogInjector logs every action instead of injecting it.
// It backs the -dry-run flag and headless hosts.
type LogInjector struct {
	log *zap.Logger
}

// NewLogInjector creates a LogInjector; a nil logger discards everything
func NewLogInjector(logger *zap.Logger) *LogInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogInjector{log: logger.With(zap.String("component", "injector"))}
}

func (i *LogInjector) MoveRelative(dx, dy int) error {
	i.log.Debug("Move", zap.Int("dx", dx), zap.Int("dy", dy))
	return nil
}

func (i *LogInjector) Press(b Button) error {
	i.log.Info("Press", zap.String("button", string(b)))
	return nil
}

func (i *LogInjector) Release(b Button) error {
	i.log.Info("Release", zap.String("button", string(b)))
	return nil
}

func (i *LogInjector) Scroll(amount int) error {
	i.log.Info("Scroll", zap.Int("amount", amount))
	return nil
}

func (i *LogInjector) TypeKeys(keys []Key) error {
	names := make([]string, len(keys))
	for n, k := range keys {
		names[n] = k.String()
	}
	i.log.Info("Type", zap.Strings("keys", names))
	return nil
}

func (i *LogInjector) TapRaw(code uint16) error {
	i.log.Info("Tap raw", zap.Uint16("code", code))
	return nil
}
