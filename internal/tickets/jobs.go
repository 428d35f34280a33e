package tickets

import (
	"context"
	"sync"
	"time"

	"festival/pkg/logger"
)

// PhaseSweeper periodically runs phase progression over every ticket type
type PhaseSweeper struct {
	service  Service
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewPhaseSweeper(service Service, interval time.Duration) *PhaseSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PhaseSweeper{
		service:  service,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval until Stop or ctx ends
func (ps *PhaseSweeper) Start(ctx context.Context) {
	logger.GetDefault().Info("Starting phase sweeper", "interval", ps.interval.String())

	ps.wg.Add(1)
	go func() {
		defer ps.wg.Done()

		ticker := time.NewTicker(ps.interval)
		defer ticker.Stop()

		ps.sweep(ctx)
		for {
			select {
			case <-ticker.C:
				ps.sweep(ctx)
			case <-ps.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (ps *PhaseSweeper) Stop() {
	ps.stopOnce.Do(func() {
		close(ps.done)
	})
	ps.wg.Wait()
	logger.GetDefault().Info("Phase sweeper stopped")
}

func (ps *PhaseSweeper) sweep(ctx context.Context) {
	result, err := ps.service.AdvancePhases(ctx, AdvancePhasesRequest{})
	if err != nil {
		logger.GetDefault().WithError(err).Error("Phase sweep failed")
		return
	}
	if result.Changed > 0 {
		logger.GetDefault().Info("Phase sweep advanced ticket types", "changed", result.Changed, "checked", result.Checked)
	}
}
