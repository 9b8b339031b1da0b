package relay

import (
	"context"
	"time"

	"github.com/jward/pennyone/internal/model"
)

// Replay step bounds.
const (
	DefaultMinStep = 50 * time.Millisecond
	DefaultMaxStep = 2 * time.Second
)

// Replayer re-emits a recorded session as AGENT_TRACE events.
type Replayer struct {
	hub     *Hub
	MinStep time.Duration
	MaxStep time.Duration
}

// NewReplayer creates a Replayer with the default step bounds.
func NewReplayer(hub *Hub) *Replayer {
	return &Replayer{hub: hub, MinStep: DefaultMinStep, MaxStep: DefaultMaxStep}
}

// Replay emits pings in order. The wait before each ping after the first is
// its original gap divided by speed, clamped to [MinStep, MaxStep]. A speed
// of zero or less plays at 1x. Replay returns the number of pings emitted
// and ctx.Err() if cancelled.
func (r *Replayer) Replay(ctx context.Context, project string, pings []model.Ping, speed float64) (int, error) {
	if speed <= 0 {
		speed = 1
	}
	for i, p := range pings {
		if i > 0 {
			if err := sleepCtx(ctx, r.Step(pings[i-1].Timestamp, p.Timestamp, speed)); err != nil {
				return i, err
			}
		} else if err := ctx.Err(); err != nil {
			return 0, err
		}
		r.hub.Broadcast(project, AgentTrace, p)
	}
	return len(pings), nil
}

// Step returns the clamped delay between two pings at speed.
func (r *Replayer) Step(prev, next time.Time, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	d := time.Duration(float64(next.Sub(prev)) / speed)
	return min(max(d, r.MinStep), r.MaxStep)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
