// Package background runs document ingestion off the request path. The
// HTTP handler enqueues a job and responds immediately; a fixed pool of
// workers drains the queue and drives each document through the pipeline.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/models"
)

// ErrQueueFull is returned by Submit when the ingestion queue is at
// capacity. Callers should surface it as backpressure, not retry in a loop.
var ErrQueueFull = errors.New("ingest queue is full")

// Job is one document waiting to be processed.
type Job struct {
	Document *models.Document
	Content  []byte
}

// Processor consumes a job. Failures are the processor's to record; the
// pool only schedules.
type Processor interface {
	Process(ctx context.Context, doc *models.Document, content []byte)
}

// Config holds worker pool settings.
type Config struct {
	Workers              int
	QueueSize            int
	GracefulShutdownTime time.Duration
}

// DefaultConfig returns sensible pool defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:              4,
		QueueSize:            64,
		GracefulShutdownTime: 30 * time.Second,
	}
}

// Validate checks pool settings.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	return nil
}

// Pool is a bounded ingestion worker pool.
type Pool struct {
	config     *Config
	processor  Processor
	queueDepth prometheus.Gauge
	logger     *logrus.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewPool creates a pool. queueDepth may be nil when metrics are disabled.
func NewPool(config *Config, processor Processor, queueDepth prometheus.Gauge, logger *logrus.Logger) *Pool {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:     config,
		processor:  processor,
		queueDepth: queueDepth,
		logger:     logger,
		jobs:       make(chan Job, config.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("worker pool already started")
	}

	p.logger.WithFields(logrus.Fields{
		"workers":    p.config.Workers,
		"queue_size": p.config.QueueSize,
	}).Info("Starting ingest worker pool")

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}

	p.started = true
	return nil
}

// Submit enqueues a job without blocking. ErrQueueFull signals that the
// caller should shed load.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("worker pool is stopped")
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		p.updateQueueDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueLength returns the number of jobs waiting.
func (p *Pool) QueueLength() int {
	return len(p.jobs)
}

// Stop drains the queue and waits for in-flight jobs. Jobs still running
// after the grace period are canceled via their context.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("Stopping ingest worker pool")
	close(p.jobs)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Ingest worker pool stopped gracefully")
	case <-time.After(p.config.GracefulShutdownTime):
		p.logger.Warn("Ingest worker pool stop timed out, canceling in-flight jobs")
		p.cancel()
		<-done
	}
	p.cancel()
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()

	log := p.logger.WithField("worker", id)
	for job := range p.jobs {
		p.updateQueueDepth()
		log.WithField("document_id", job.Document.ID).Debug("Picked up ingest job")
		p.processor.Process(p.ctx, job.Document, job.Content)
	}
}

func (p *Pool) updateQueueDepth() {
	if p.queueDepth != nil {
		p.queueDepth.Set(float64(len(p.jobs)))
	}
}
