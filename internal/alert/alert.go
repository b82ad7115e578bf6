// Package alert abstracts the looping offer alarm tone. Actual audio output
// belongs to the device shell; the engine only guarantees the start/stop
// discipline (the tone must die on every offer-closing path).
package alert

import "log/slog"

type Sounder interface {
	// Start begins the looping tone. Starting an already-playing tone is a
	// no-op.
	Start()
	// Stop silences the tone. Safe to call when nothing is playing.
	Stop()
}

// LogSounder logs tone transitions; the default when no device sounder is
// attached.
type LogSounder struct {
	log     *slog.Logger
	playing bool
}

func NewLogSounder(log *slog.Logger) *LogSounder {
	if log == nil {
		log = slog.Default()
	}
	return &LogSounder{log: log.With("component", "alert")}
}

func (s *LogSounder) Start() {
	if s.playing {
		return
	}
	s.playing = true
	s.log.Info("alarm tone on")
}

func (s *LogSounder) Stop() {
	if !s.playing {
		return
	}
	s.playing = false
	s.log.Info("alarm tone off")
}
