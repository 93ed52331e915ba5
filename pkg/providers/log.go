package providers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openfroyo/actiontracker/pkg/engine"
	"github.com/openfroyo/actiontracker/pkg/resources"
)

// Log writes a message to the run log. It always reports an update.
// Attributes: message (defaults to the name), level.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates the log provider.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "log_resource").Logger()}
}

func (p *Log) Type() string          { return "log" }
func (p *Log) Actions() []string     { return []string{"write"} }
func (p *Log) DefaultAction() string { return "write" }

// LoadCurrentState returns nil; a log message has no prior state.
func (p *Log) LoadCurrentState(context.Context, *resources.Declared) (*resources.Declared, error) {
	return nil, nil
}

// Converge writes the message.
func (p *Log) Converge(_ context.Context, desired, _ *resources.Declared, action string) (bool, error) {
	if action != "write" {
		return false, unsupported(desired, action)
	}
	msg := desired.String("message")
	if msg == "" {
		msg = desired.ResourceName
	}
	level, err := zerolog.ParseLevel(desired.String("level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	p.logger.WithLevel(level).Str("resource", desired.Identity()).Msg(msg)
	return true, nil
}

// WouldConverge always predicts an update.
func (p *Log) WouldConverge(_ context.Context, desired, _ *resources.Declared, action string) (bool, error) {
	if action != "write" {
		return false, unsupported(desired, action)
	}
	return true, nil
}

var (
	_ engine.Provider        = (*Log)(nil)
	_ engine.WhyRunSupporter = (*Log)(nil)
)
