package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/service"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

// WorkflowApplier is the part of WorkflowService the worker needs.
type WorkflowApplier interface {
	Apply(ctx context.Context, actor *domain.User, ticketID string) (*service.Evaluation, error)
}

// WorkflowWorker applies workflow rules to newly created tickets off the
// request path.
type WorkflowWorker struct {
	workflow   WorkflowApplier
	logger     *zap.Logger
	queue      chan string
	maxRetries int
	wg         sync.WaitGroup
}

// NewWorkflowWorker builds a worker with a bounded queue.
func NewWorkflowWorker(workflow WorkflowApplier, logger *zap.Logger, queueSize int) *WorkflowWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &WorkflowWorker{
		workflow:   workflow,
		logger:     logger,
		queue:      make(chan string, queueSize),
		maxRetries: 3,
	}
}

// Register subscribes the worker to ticket creation.
func (w *WorkflowWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, w.enqueue)
}

func (w *WorkflowWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event.TicketID:
	default:
		w.logger.Warn("workflow queue full; skipping auto-evaluation", zap.String("ticket_id", event.TicketID))
	}
	return nil
}

// Start processes queued tickets until ctx is cancelled.
func (w *WorkflowWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-w.queue:
				w.process(ctx, id)
			}
		}
	}()
}

// Wait blocks until the processing loop has exited.
func (w *WorkflowWorker) Wait() {
	w.wg.Wait()
}

// process retries lost races, since a human may act on the ticket between
// creation and evaluation.
func (w *WorkflowWorker) process(ctx context.Context, ticketID string) {
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		eval, err := w.workflow.Apply(ctx, nil, ticketID)
		switch {
		case err == nil:
			if eval.AppliedRule != nil {
				w.logger.Info("workflow rule applied",
					zap.String("ticket_id", ticketID),
					zap.String("rule_id", eval.AppliedRule.ID))
			}
			return
		case apperrors.IsConflict(err):
			w.logger.Debug("workflow apply conflicted; retrying",
				zap.String("ticket_id", ticketID),
				zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		default:
			w.logger.Warn("workflow auto-evaluation failed",
				zap.String("ticket_id", ticketID),
				zap.Error(err))
			return
		}
	}
	w.logger.Warn("workflow auto-evaluation gave up after conflicts", zap.String("ticket_id", ticketID))
}
