package scheduler

import (
	"context"
	"time"

	"remindd/internal/delivery"
)

// Dispatcher hands due instances to the delivery pipeline.
// Satisfied by *delivery.Service.
type Dispatcher interface {
	Dispatch(ctx context.Context, j delivery.Job) error
}

type CheckinConfig struct {
	Enabled  bool
	Users    []string
	FromHour int
	ToHour   int
	Channels []string
}

type Config struct {
	Enabled  bool
	Tick     string // cron expression or interval, see ParseSchedule
	Timezone string
	// Retention drops ledger rows older than this. Zero keeps everything.
	Retention time.Duration
	Checkin   CheckinConfig
}

// Snapshot is a point-in-time view for ops output.
type Snapshot struct {
	Enabled    bool      `json:"enabled"`
	Timezone   string    `json:"timezone"`
	LastTickAt time.Time `json:"last_tick_at"`
	LastKeys   []string  `json:"last_keys,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	TickCount  uint64    `json:"tick_count"`
}
