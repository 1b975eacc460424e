package scheduler

import (
	"time"

	"pdf-rag-chatbot/internal/logger"

	"github.com/go-co-op/gocron"
)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func New() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Every schedules job at a fixed interval. Errors returned by job are logged.
func (s *Scheduler) Every(tag string, interval time.Duration, job func() error) error {
	_, err := s.scheduler.Every(interval).Tag(tag).Do(func() {
		start := time.Now()
		if err := job(); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err)
			return
		}
		logger.Debug("Scheduled job finished", "job", tag, "duration", time.Since(start).String())
	})
	return err
}

// remove unschedules the job with tag.
func (s *Scheduler) remove(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns the tags of all scheduled jobs.
func (s *Scheduler) Jobs() []string {
	var tags []string
	for _, job := range s.scheduler.Jobs() {
		tags = append(tags, job.Tags()...)
	}
	return tags
}
