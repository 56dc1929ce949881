package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"
	"secure-transfer-gateway/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Poll strategies.
const (
	PollFixed       = "fixed"
	PollExponential = "exponential"
)

// JobClientConfig tunes submission retries and polling.
type JobClientConfig struct {
	PollInterval  time.Duration
	MaxWait       time.Duration
	Strategy      string
	MaxInterval   time.Duration
	SubmitRetries uint64
}

func (c JobClientConfig) withDefaults() JobClientConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 2 * time.Minute
	}
	if c.Strategy == "" {
		c.Strategy = PollFixed
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	return c
}

// JobClient submits work to a remote job service and waits for it to finish.
// Terminal results are memoised per job ID, so awaiting a finished job again
// never touches the backend.
type JobClient[P any] struct {
	backend ports.JobBackend[P]
	cfg     JobClientConfig
	log     zerolog.Logger

	mu   sync.Mutex
	done map[string]*domain.VerificationJob
}

// NewJobClient wraps backend with retrying submission and bounded polling.
func NewJobClient[P any](backend ports.JobBackend[P], cfg JobClientConfig, log zerolog.Logger) *JobClient[P] {
	return &JobClient[P]{
		backend: backend,
		cfg:     cfg.withDefaults(),
		log:     log,
		done:    make(map[string]*domain.VerificationJob),
	}
}

// Submit hands payload to the backend and returns the job ID. Transport
// failures are retried with capped exponential backoff.
func (c *JobClient[P]) Submit(ctx context.Context, payload P) (string, error) {
	var jobID string
	attempt := 0

	op := func() error {
		attempt++
		id, err := c.backend.Submit(ctx, payload)
		if err != nil {
			if apperror.CodeOf(err) != "" || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("job submit failed")
			return err
		}
		if id == "" {
			return backoff.Permanent(apperror.ErrJobMalformedResponse(errors.New("empty job id")))
		}
		jobID = id
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, c.cfg.SubmitRetries), ctx)

	if err := backoff.Retry(op, b); err != nil {
		if apperror.CodeOf(err) != "" {
			return "", err
		}
		return "", apperror.ErrUploadFailed(err)
	}
	c.log.Debug().Str("job_id", jobID).Int("attempts", attempt).Msg("job submitted")
	return jobID, nil
}

// AwaitResult polls jobID until it completes, fails, or maxWait elapses.
// Zero pollInterval or maxWait fall back to the configured values. ctx is
// checked before every poll and interrupts the sleep between polls.
func (c *JobClient[P]) AwaitResult(ctx context.Context, jobID string, pollInterval, maxWait time.Duration) (*domain.VerificationJob, error) {
	if job, ok := c.memo(jobID); ok {
		return terminal(job)
	}
	if pollInterval <= 0 {
		pollInterval = c.cfg.PollInterval
	}
	if maxWait <= 0 {
		maxWait = c.cfg.MaxWait
	}

	deadline := time.Now().Add(maxWait)
	schedule := c.schedule(pollInterval)
	l := c.log.With().Str("job_id", jobID).Logger()

	for polls := 1; ; polls++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("await job %s: %w", jobID, err)
		}

		job, err := c.backend.Poll(ctx, jobID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("await job %s: %w", jobID, ctx.Err())
		case err != nil && apperror.CodeOf(err) != "":
			return nil, err
		case err != nil:
			// Transport hiccups are tolerated until the deadline.
			l.Warn().Err(err).Int("poll", polls).Msg("job poll failed")
		case job == nil:
			return nil, apperror.ErrJobMalformedResponse(errors.New("empty poll response"))
		case job.Status.IsTerminal():
			c.remember(jobID, job)
			l.Debug().Str("status", string(job.Status)).Int("polls", polls).Msg("job finished")
			return terminal(job)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.Warn().Int("polls", polls).Dur("max_wait", maxWait).Msg("job poll timed out")
			return nil, apperror.ErrPollTimeout(jobID)
		}
		wait := schedule.NextBackOff()
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("await job %s: %w", jobID, ctx.Err())
		case <-timer.C:
		}
	}
}

// Run submits payload and waits for the result with the configured timings.
func (c *JobClient[P]) Run(ctx context.Context, payload P) (*domain.VerificationJob, error) {
	jobID, err := c.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return c.AwaitResult(ctx, jobID, 0, 0)
}

func (c *JobClient[P]) schedule(interval time.Duration) backoff.BackOff {
	if c.cfg.Strategy != PollExponential {
		return backoff.NewConstantBackOff(interval)
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = interval
	eb.MaxInterval = c.cfg.MaxInterval
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

func (c *JobClient[P]) memo(jobID string) (*domain.VerificationJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.done[jobID]
	return job, ok
}

func (c *JobClient[P]) remember(jobID string, job *domain.VerificationJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done[jobID] = job
}

// Forget drops a memoised result.
func (c *JobClient[P]) Forget(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.done, jobID)
}

func terminal(job *domain.VerificationJob) (*domain.VerificationJob, error) {
	if job.Status == domain.JobFailed {
		reason := job.FailureReason
		if reason == "" {
			reason = "no reason given"
		}
		return nil, apperror.ErrJobFailed(reason)
	}
	out := *job
	return &out, nil
}
