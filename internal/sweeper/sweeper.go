// Package sweeper owns the process-wide scheduled tasks (job expiration and
// similar periodic work). Tasks run cooperatively on their own tickers and
// stop together on shutdown.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

// Task is one unit of periodic work. Errors are logged, never fatal.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	tasks []Task
	wg    sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Register(t Task) {
	s.tasks = append(s.tasks, t)
}

// Start launches one goroutine per task; the goroutines exit when ctx is
// canceled. Stop waits for them.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.tasks {
		t := t
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			log := logger.WithComponent("sweeper").With().Str("task", t.Name).Logger()

			ticker := time.NewTicker(t.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					log.Info().Msg("stopped")
					return
				case <-ticker.C:
					if err := t.Run(ctx); err != nil {
						log.Warn().Err(err).Msg("sweep failed")
					}
				}
			}
		}()
	}
}

// Stop blocks until every task goroutine has exited.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}
