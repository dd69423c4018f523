// Package schedule runs per-user digests on a cron schedule and stores them.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/robfig/cron/v3"
)

// DefaultSpec runs every day at 07:00 local time.
const DefaultSpec = "0 0 7 * * *"

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TopicRunner produces digests for a list of topics.
type TopicRunner interface {
	RunTopics(ctx context.Context, topics []string, window string, maxArticles int) []pipeline.TopicResult
}

// Store is the slice of storage.Backend the scheduler needs.
type Store interface {
	ListUsers(ctx context.Context) ([]*storage.User, error)
	SaveDigest(ctx context.Context, d *storage.DigestRecord) error
}

// DeliverFunc receives each user's outcomes after they are stored.
type DeliverFunc func(u *storage.User, results []pipeline.TopicResult)

type Config struct {
	Spec        string
	Window      string
	MaxArticles int
	// Timeout bounds one full pass over all users; 0 means one hour.
	Timeout time.Duration
	Deliver DeliverFunc
	Logger  *slog.Logger
}

// Stats summarizes one pass.
type Stats struct {
	Users   int
	Digests int
	Skipped int
	Failed  int
}

type Scheduler struct {
	cfg    Config
	runner TopicRunner
	store  Store
	sched  cron.Schedule
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	started bool
}

// normalizeSpec prepends "0 " to standard 5-field expressions so they work
// with the seconds-aware parser.
func normalizeSpec(spec string) string {
	if len(strings.Fields(spec)) == 5 {
		return "0 " + spec
	}
	return spec
}

// ParseSpec validates a 5 or 6 field cron expression or a descriptor such
// as @daily.
func ParseSpec(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(normalizeSpec(spec))
	if err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %w", news.ErrConfiguration, spec, err)
	}
	return s, nil
}

func New(runner TopicRunner, store Store, cfg Config) (*Scheduler, error) {
	if runner == nil || store == nil {
		return nil, fmt.Errorf("%w: scheduler needs a pipeline and a store", news.ErrConfiguration)
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	cfg.Spec = normalizeSpec(cfg.Spec)
	sched, err := ParseSpec(cfg.Spec)
	if err != nil {
		return nil, err
	}
	if cfg.Window == "" {
		cfg.Window = news.DefaultWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		store:  store,
		sched:  sched,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: cfg.Logger,
	}, nil
}

// Start registers the digest job and starts the cron loop. Calling it again
// is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.cron.Schedule(s.sched, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled digest run failed", "err", err)
		}
	}))
	s.cron.Start()
	s.started = true

	s.logger.Info("scheduler started", "spec", s.cfg.Spec, "next", s.sched.Next(time.Now()))
	return nil
}

// Stop halts the cron loop and waits for a running pass or ctx, whichever
// ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports when the job runs next; zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	return s.sched.Next(time.Now())
}

// RunOnce builds and stores digests for every user's topics. Per-topic
// failures are counted, not returned; only listing users can fail the pass.
func (s *Scheduler) RunOnce(ctx context.Context) (Stats, error) {
	start := time.Now()
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("schedule: list users: %w", err)
	}

	stats := Stats{Users: len(users)}
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		results := s.runner.RunTopics(ctx, u.Topics, s.cfg.Window, s.cfg.MaxArticles)

		for _, r := range results {
			switch {
			case r.Digest != nil:
				rec := r.Digest.Record(u.MobileNo)
				if err := s.store.SaveDigest(ctx, rec); err != nil {
					s.logger.Error("failed to store digest", "mobile_no", u.MobileNo, "topic", r.Topic, "err", err)
					stats.Failed++
					continue
				}
				stats.Digests++
			case r.Skipped:
				stats.Skipped++
			default:
				s.logger.Warn("topic digest failed", "mobile_no", u.MobileNo, "topic", r.Topic, "err", r.Err)
				stats.Failed++
			}
		}

		if s.cfg.Deliver != nil {
			s.cfg.Deliver(u, results)
		}
	}

	s.logger.Info("digest pass complete",
		"users", stats.Users, "digests", stats.Digests, "skipped", stats.Skipped,
		"failed", stats.Failed, "duration", time.Since(start))
	return stats, ctx.Err()
}
