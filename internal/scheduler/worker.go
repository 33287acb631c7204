package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	dispatchservice "opspulse_backend/internal/dispatch/service"
	"opspulse_backend/internal/escalation"
	"opspulse_backend/internal/scan"
	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/config"
	"opspulse_backend/platform/logger"
)

// Worker consumes scheduler tasks: scan passes, ladder passes, and the
// individual dispatch requests a ladder pass fans out.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	client     *Client
	scanner    *scan.Service
	escalation *escalation.Service
	dispatcher *dispatchservice.Service
	log        *logger.Logger
}

// NewWorker creates the asynq worker with all handlers registered.
func NewWorker(cfg config.SchedulerConfig, scanner *scan.Service, ladder *escalation.Service, dispatcher *dispatchservice.Service, client *Client, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		client:     client,
		scanner:    scanner,
		escalation: ladder,
		dispatcher: dispatcher,
		log:        log,
	}

	mux.HandleFunc(TaskScanPass, w.handleScanPass)
	mux.HandleFunc(TaskLadderPass, w.handleLadderPass)
	mux.HandleFunc(TaskDispatchRequest, w.handleDispatchRequest)

	return w, nil
}

func (w *Worker) handleScanPass(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScanPassPayload(task)
	if err != nil {
		return err
	}

	categories := make([]domain.Category, 0, len(payload.Categories))
	for _, raw := range payload.Categories {
		category := domain.Category(raw)
		if !category.Valid() {
			w.log.Warn("scan pass skipping unknown category", "category", raw)
			continue
		}
		categories = append(categories, category)
	}

	report, err := w.scanner.Run(ctx, categories)
	if err != nil {
		return err
	}
	w.log.Info("scan pass finished",
		"scanned", len(report.ScannedDomains),
		"failed", len(report.FailedDomains),
		"newSignals", report.NewSignals,
		"newFollowUps", report.NewFollowUps)
	return nil
}

// handleLadderPass walks the ladder and fans each produced request out as its
// own task. A request that fails to enqueue is logged and dropped; the next
// ladder pass regenerates it.
func (w *Worker) handleLadderPass(ctx context.Context, _ *asynq.Task) error {
	requests, err := w.escalation.AdvanceDue(ctx)
	if err != nil {
		return err
	}

	enqueued := 0
	for _, req := range requests {
		if err := w.client.EnqueueDispatch(ctx, req); err != nil {
			w.log.Warn("failed to enqueue dispatch request",
				"itemId", req.ItemID, "step", req.StepIndex, "error", err)
			continue
		}
		enqueued++
	}
	w.log.Info("ladder pass finished", "requests", len(requests), "enqueued", enqueued)
	return nil
}

func (w *Worker) handleDispatchRequest(ctx context.Context, task *asynq.Task) error {
	req, err := ParseDispatchRequestPayload(task)
	if err != nil {
		return err
	}

	outcome, err := w.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	w.log.Info("dispatch task finished",
		"itemId", req.ItemID, "step", req.StepIndex, "outcome", string(outcome.Status))
	return nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
