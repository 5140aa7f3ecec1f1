package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firealert/internal/alerts"
	"firealert/internal/config"
	"firealert/internal/handlers"
	"firealert/internal/kafka"
	"firealert/internal/logger"
	"firealert/internal/metrics"
	"firealert/internal/middleware"
	"firealert/internal/models"
	"firealert/internal/scoring"
	"firealert/internal/worker"
)

// Processor is the high-level coordinator for the inference API, the
// detection stream and the alerting workflow.
type Processor struct {
	cfg          *config.Config
	scorer       *scoring.Scorer
	notifier     *alerts.Notifier
	consumer     *kafka.Consumer
	workerPool   *worker.Pool
	httpServer   *http.Server
	envelopeChan chan *models.Envelope
	wg           sync.WaitGroup

	transport    alerts.Transport
	statInterval time.Duration
}

// Option customizes a Processor
type Option func(*Processor)

// WithTransport replaces the SMTP transport used for notifications
func WithTransport(t alerts.Transport) Option {
	return func(p *Processor) { p.transport = t }
}

// WithConsumer replaces the Kafka consumer built from config
func WithConsumer(c *kafka.Consumer) Option {
	return func(p *Processor) { p.consumer = c }
}

// WithStatsInterval sets how often stats are logged
func WithStatsInterval(d time.Duration) Option {
	return func(p *Processor) { p.statInterval = d }
}

// New constructs a Processor scoring with model. The Kafka consumer is only
// created when brokers are configured.
func New(cfg *config.Config, model *scoring.Model, opts ...Option) (*Processor, error) {
	if model == nil {
		return nil, errors.New("processor: model is required")
	}

	p := &Processor{
		cfg:          cfg,
		scorer:       scoring.NewScorer(model),
		envelopeChan: make(chan *models.Envelope, cfg.Worker.QueueSize),
		statInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.transport == nil {
		p.transport = alerts.NewSMTPTransport(cfg.Notifier(), cfg.SMTP.Timeout)
	}
	p.notifier = alerts.NewNotifier(cfg.Notifier(), p.transport)

	if p.consumer == nil && len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			GroupID:      cfg.Kafka.GroupID,
			EnvelopeChan: p.envelopeChan,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize consumer: %w", err)
		}
		p.consumer = consumer
	}

	p.initWorkerPool()
	p.initHTTPServer()
	return p, nil
}

// EnvelopeChan exposes the workflow queue for in-process producers
func (p *Processor) EnvelopeChan() chan<- *models.Envelope {
	return p.envelopeChan
}

// Handler returns the HTTP routes served by the processor
func (p *Processor) Handler() http.Handler {
	return p.httpServer.Handler
}

// Run starts background goroutines and blocks until context cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().
		Int("features", p.scorer.Model().Len()).
		Float64("threshold", p.scorer.Model().Threshold()).
		Str("impute_mode", string(p.scorer.Model().ImputeMode())).
		Bool("notifier_ready", p.notifier.Ready()).
		Bool("consumer_enabled", p.consumer != nil).
		Msg("processor starting")

	if !p.notifier.Ready() {
		log.Warn().Msg("notifier configuration incomplete, alerts will not be emailed")
	}

	p.workerPool.Start()

	serverErr := make(chan error, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.httpServer.Addr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			serverErr <- err
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if p.consumer != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.consumer.Start(consumerCtx); err != nil {
				log.Error().Err(err).Msg("consumer exited")
			}
		}()
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(statsCtx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	stopConsumer()
	stopStats()
	if err := p.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// initWorkerPool initializes the worker pool
func (p *Processor) initWorkerPool() {
	p.workerPool = worker.NewPool(worker.Config{
		Scorer:        p.scorer,
		Notifier:      p.notifier,
		EnvelopeChan:  p.envelopeChan,
		Workers:       p.cfg.Worker.Workers,
		BatchSize:     p.cfg.Worker.BatchSize,
		BatchTimeout:  p.cfg.Worker.BatchTimeout,
		NotifyTimeout: p.cfg.SMTP.Timeout,
	})
}

// initHTTPServer initializes the HTTP server with handlers
func (p *Processor) initHTTPServer() {
	mux := http.NewServeMux()

	predict := handlers.NewPredictHandler(p.scorer, p.cfg.HTTP.MaxBodySize)
	mux.Handle("/meta", wrap("meta", http.HandlerFunc(predict.Meta)))
	mux.Handle("/predict", wrap("predict", http.HandlerFunc(predict.Predict)))
	mux.Handle("/predict_batch", wrap("predict_batch", http.HandlerFunc(predict.PredictBatch)))

	detections := handlers.NewDetectionHandler(handlers.DetectionConfig{
		EnvelopeChan: p.envelopeChan,
		MaxBodySize:  p.cfg.HTTP.MaxBodySize,
	})
	mux.Handle("/detections", wrap("detections", detections))

	mux.HandleFunc("/health", p.healthHandler)
	mux.HandleFunc("/stats", p.statsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	metrics.WorkerQueueCapacity.Set(float64(cap(p.envelopeChan)))

	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func wrap(endpoint string, h http.Handler) http.Handler {
	return middleware.Chain(h, middleware.Logging(endpoint), middleware.Recovery)
}

// shutdown performs graceful shutdown
func (p *Processor) shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop accepting new HTTP requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping HTTP server")
	if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the consumer; its context is already cancelled
	if p.consumer != nil {
		log.Info().Msg("closing kafka consumer")
		if err := p.consumer.Stop(); err != nil {
			log.Error().Err(err).Msg("consumer close error")
		}
	}

	// 3. Wait for producers of envelopes before closing the channel
	p.wg.Wait()
	log.Info().Msg("closing envelope channel")
	close(p.envelopeChan)

	// 4. Let workers drain what is queued (with timeout)
	done := make(chan struct{})
	go func() {
		p.workerPool.Drain()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("workers drained gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("worker drain timeout - stopping workers")
		p.workerPool.Stop()
	}

	stats := p.workerPool.Stats()
	log.Info().
		Uint64("scored", stats.Scored).
		Uint64("alerted", stats.Alerted).
		Uint64("notified", stats.Notified).
		Msg("processor stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(p.statInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workerStats := p.workerPool.Stats()
			metrics.WorkerQueueSize.Set(float64(len(p.envelopeChan)))

			event := log.Info().
				Uint64("worker_scored", workerStats.Scored).
				Uint64("worker_failed", workerStats.Failed).
				Uint64("worker_alerted", workerStats.Alerted).
				Uint64("worker_notified", workerStats.Notified).
				Int("queue_size", len(p.envelopeChan))
			if p.consumer != nil {
				consumerStats := p.consumer.Stats()
				event = event.
					Uint64("consumer_enqueued", consumerStats.Enqueued).
					Uint64("consumer_malformed", consumerStats.Malformed)
			}
			event.Msg("stats")
		}
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp"`
	Features        int    `json:"features"`
	NotifierReady   bool   `json:"notifier_ready"`
	ConsumerEnabled bool   `json:"consumer_enabled"`
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:          "healthy",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Features:        p.scorer.Model().Len(),
		NotifierReady:   p.notifier.Ready(),
		ConsumerEnabled: p.consumer != nil,
	})
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Worker   worker.Stats         `json:"worker"`
	Consumer *kafka.ConsumerStats `json:"consumer,omitempty"`
	Channel  ChannelStats         `json:"channel"`
}

// ChannelStats describes the workflow queue
type ChannelStats struct {
	Buffered int `json:"buffered"`
	Capacity int `json:"capacity"`
}

// statsHandler returns current statistics
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Worker: p.workerPool.Stats(),
		Channel: ChannelStats{
			Buffered: len(p.envelopeChan),
			Capacity: cap(p.envelopeChan),
		},
	}
	if p.consumer != nil {
		stats := p.consumer.Stats()
		resp.Consumer = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
