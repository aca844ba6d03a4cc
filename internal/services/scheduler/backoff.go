package scheduler

import "time"

type BackoffConfig struct {
	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Backoff выдаёт паузу перед повтором филиала после failCount неудач подряд.
type Backoff struct {
	cfg BackoffConfig
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	return &Backoff{cfg: cfg}
}

func (b *Backoff) Delay(failCount int32) time.Duration {
	switch {
	case failCount <= 1:
		return b.cfg.Backoff1
	case failCount == 2:
		return b.cfg.Backoff2
	case failCount == 3:
		return b.cfg.Backoff3
	default:
		return b.cfg.Backoff4
	}
}
