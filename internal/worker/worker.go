package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"firealert/internal/alerts"
	"firealert/internal/logger"
	"firealert/internal/metrics"
	"firealert/internal/models"
	"firealert/internal/scoring"
)

// Scorer scores a batch of feature records
type Scorer interface {
	Score(records []models.FeatureRecord) ([]scoring.Decision, error)
}

// Notifier dispatches an emergency notification
type Notifier interface {
	Notify(ctx context.Context, nc alerts.NotificationContext) alerts.Result
}

// Pool manages workers that score queued detections and notify on alerts
type Pool struct {
	scorer        Scorer
	notifier      Notifier
	envelopeChan  <-chan *models.Envelope
	workers       int
	batchSize     int
	batchTimeout  time.Duration
	notifyTimeout time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	scored   atomic.Uint64
	failed   atomic.Uint64
	alerted  atomic.Uint64
	notified atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Scorer        Scorer
	Notifier      Notifier
	EnvelopeChan  <-chan *models.Envelope
	Workers       int
	BatchSize     int
	BatchTimeout  time.Duration
	NotifyTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		scorer:        cfg.Scorer,
		notifier:      cfg.Notifier,
		envelopeChan:  cfg.EnvelopeChan,
		workers:       cfg.Workers,
		batchSize:     cfg.BatchSize,
		batchTimeout:  cfg.BatchTimeout,
		notifyTimeout: cfg.NotifyTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins processing envelopes
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", p.workers).
		Int("batch_size", p.batchSize).
		Dur("batch_timeout", p.batchTimeout).
		Msg("starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Drain waits for workers to exit after the envelope channel is closed,
// processing everything still queued.
func (p *Pool) Drain() {
	p.wg.Wait()
}

// Stop cancels workers and waits for them. Queued envelopes that were not
// yet read are dropped; a batch in hand is still processed.
func (p *Pool) Stop() {
	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("worker pool stopped")
}

// worker processes envelopes from the channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	batch := make([]*models.Envelope, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.ctx.Done():
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return

		case envelope, ok := <-p.envelopeChan:
			if !ok {
				// Channel closed, flush and exit
				if len(batch) > 0 {
					p.processBatch(batch)
				}
				return
			}

			batch = append(batch, envelope)

			if len(batch) >= p.batchSize {
				p.processBatch(batch)
				batch = batch[:0]
				timer.Reset(p.batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = batch[:0]
			}
			timer.Reset(p.batchTimeout)
		}
	}
}

// processBatch scores every envelope of a batch on its own. Envelopes share a
// batch only because they arrived close together, so batch imputation must not
// mix values across unrelated detections.
func (p *Pool) processBatch(batch []*models.Envelope) {
	if len(batch) == 0 {
		return
	}

	log := logger.WithComponent("worker")
	start := time.Now()
	defer func() {
		metrics.WorkerBatchDuration.Observe(time.Since(start).Seconds())
	}()

	for _, envelope := range batch {
		decisions, err := p.scorer.Score([]models.FeatureRecord{envelope.Detection.Features})
		if err != nil {
			p.failed.Add(1)
			log.Error().
				Err(err).
				Str("envelope_id", envelope.ID).
				Str("job_id", envelope.Detection.JobID).
				Msg("failed to score detection")
			continue
		}
		p.handleDecision(envelope, decisions[0])
	}

	log.Debug().Int("batch_size", len(batch)).Dur("duration", time.Since(start)).Msg("batch processed")
}

func (p *Pool) handleDecision(envelope *models.Envelope, d scoring.Decision) {
	p.scored.Add(1)
	metrics.ObserveDecision("workflow", d.Probability, d.Alert)

	if !d.Alert {
		return
	}
	p.alerted.Add(1)

	log := logger.WithJob("worker", envelope.Detection.JobID)
	log.Warn().
		Float64("probability", d.Probability).
		Str("envelope_id", envelope.ID).
		Str("source", envelope.Source).
		Msg("hazard alert raised")

	if p.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.notifyTimeout)
	defer cancel()

	res := p.notifier.Notify(ctx, NotificationFor(envelope.Detection, d))
	if res.Delivered {
		p.notified.Add(1)
	}
}

// NotificationFor builds the notification context for an alerting detection.
// A missing hazard score is filled with the model probability.
func NotificationFor(det *models.Detection, d scoring.Decision) alerts.NotificationContext {
	scores := make(map[string]float64, len(det.Scores)+1)
	for k, v := range det.Scores {
		scores[k] = v
	}
	if _, ok := scores[models.ScoreHazard]; !ok {
		scores[models.ScoreHazard] = d.Probability
	}

	var ts *float64
	if det.Timestamp != nil {
		v := *det.Timestamp
		ts = &v
	}

	return alerts.NotificationContext{
		JobID:     det.JobID,
		Scores:    scores,
		Timestamp: ts,
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Scored:   p.scored.Load(),
		Failed:   p.failed.Load(),
		Alerted:  p.alerted.Load(),
		Notified: p.notified.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Scored   uint64 `json:"scored"`
	Failed   uint64 `json:"failed"`
	Alerted  uint64 `json:"alerted"`
	Notified uint64 `json:"notified"`
}
