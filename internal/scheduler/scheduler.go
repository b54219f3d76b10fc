// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/go-co-op/gocron"

	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
)

// Job names accepted by Run
const (
	JobSessionCleanup  = "session-cleanup"
	JobAttemptTimeout  = "attempt-timeout"
	JobGradingRequeue  = "grading-requeue"
	JobReviewReminders = "review-reminders"
	JobMediaCleanup    = "media-cleanup"
)

// SessionCleaner removes expired sessions and codes
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) error
}

// AttemptTimer ends attempts whose time is up
type AttemptTimer interface {
	TimeoutExpired(ctx context.Context) (int, error)
}

// GradingRequeuer puts pending and failed answers back on the grading queue
type GradingRequeuer interface {
	RequeueStale(ctx context.Context, limit int) (int, error)
}

// ReminderSender notifies users with vocabulary due for review
type ReminderSender interface {
	SendReviewReminders(ctx context.Context, vocab *repository.VocabularyRepository) (int, error)
}

// AudioReferences lists the audio files still in use
type AudioReferences interface {
	ReferencedAudio(ctx context.Context) ([]string, error)
}

// OrphanCleaner removes unreferenced files
type OrphanCleaner interface {
	CleanupOrphans(referenced []string, minAge time.Duration, now time.Time) (int, error)
}

// Deps are the services the jobs act on. Media and Audio may be nil, which
// disables media cleanup.
type Deps struct {
	Auth       SessionCleaner
	Attempts   AttemptTimer
	Grading    GradingRequeuer
	Reminders  ReminderSender
	Vocabulary *repository.VocabularyRepository
	Audio      AudioReferences
	Media      OrphanCleaner
	Reporter   *reporting.Reporter
}

// Config controls job timing
type Config struct {
	ReminderTime string        // daily, "HH:MM" UTC
	MediaMinAge  time.Duration // orphans younger than this are kept
	RequeueLimit int
	JobTimeout   time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	deps      Deps
	cfg       Config
	jobs      map[string]func(context.Context) error
}

// New creates a new scheduler instance
func New(deps Deps, cfg Config) *Scheduler {
	if cfg.ReminderTime == "" {
		cfg.ReminderTime = "08:00"
	}
	if cfg.MediaMinAge <= 0 {
		cfg.MediaMinAge = time.Hour
	}
	if cfg.RequeueLimit <= 0 {
		cfg.RequeueLimit = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if deps.Reporter == nil {
		deps.Reporter = reporting.Nop()
	}

	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		deps:      deps,
		cfg:       cfg,
	}
	s.jobs = map[string]func(context.Context) error{
		JobSessionCleanup:  s.cleanupSessions,
		JobAttemptTimeout:  s.timeoutAttempts,
		JobGradingRequeue:  s.requeueGrading,
		JobReviewReminders: s.sendReminders,
	}
	if deps.Media != nil && deps.Audio != nil {
		s.jobs[JobMediaCleanup] = s.cleanupMedia
	}
	return s
}

// Start registers every job and runs the scheduler in the background
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()

	for _, name := range s.Names() {
		if _, err := s.every(name).Do(s.run, name); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	s.scheduler.StartAsync()
	log.Printf("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// every starts the gocron chain for a job. gocron applies chained calls to
// the job created last, so each chain must end in Do before the next starts.
func (s *Scheduler) every(name string) *gocron.Scheduler {
	switch name {
	case JobAttemptTimeout:
		return s.scheduler.Every(1).Minute()
	case JobGradingRequeue:
		return s.scheduler.Every(5).Minutes()
	case JobReviewReminders:
		return s.scheduler.Every(1).Day().At(s.cfg.ReminderTime)
	case JobMediaCleanup:
		return s.scheduler.Every(1).Day().At("03:30")
	default:
		return s.scheduler.Every(1).Hour()
	}
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Names returns the jobs Run accepts
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one job immediately
func (s *Scheduler) Run(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job(ctx)
}

// run is the gocron entry point; failures are logged and reported
func (s *Scheduler) run(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := s.Run(ctx, name); err != nil {
		log.Printf("Job %s failed: %v", name, err)
		s.deps.Reporter.Error("scheduled job failed", err, map[string]interface{}{"job": name})
		return
	}
	log.Printf("[DEBUG] Job %s finished in %v", name, time.Since(start))
}

func (s *Scheduler) cleanupSessions(ctx context.Context) error {
	return s.deps.Auth.CleanupExpired(ctx)
}

func (s *Scheduler) timeoutAttempts(ctx context.Context) error {
	n, err := s.deps.Attempts.TimeoutExpired(ctx)
	if n > 0 {
		log.Printf("Timed out %d attempts", n)
	}
	return err
}

func (s *Scheduler) requeueGrading(ctx context.Context) error {
	n, err := s.deps.Grading.RequeueStale(ctx, s.cfg.RequeueLimit)
	if n > 0 {
		log.Printf("Requeued %d answers for grading", n)
	}
	return err
}

func (s *Scheduler) sendReminders(ctx context.Context) error {
	n, err := s.deps.Reminders.SendReviewReminders(ctx, s.deps.Vocabulary)
	if n > 0 {
		log.Printf("Sent %d review reminders", n)
	}
	return err
}

func (s *Scheduler) cleanupMedia(ctx context.Context) error {
	referenced, err := s.deps.Audio.ReferencedAudio(ctx)
	if err != nil {
		return err
	}
	n, err := s.deps.Media.CleanupOrphans(referenced, s.cfg.MediaMinAge, time.Now())
	if n > 0 {
		log.Printf("Removed %d orphaned media files", n)
	}
	return err
}
