package queue

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"crosspost/internal/domain"
	"crosspost/internal/events"
)

// idlePoll bounds how long a lane loop sleeps with nothing delayed.
const idlePoll = 500 * time.Millisecond

// Handler processes one queue item. A nil error completes the item; any
// error feeds the lane's retry policy.
type Handler func(ctx context.Context, item *domain.QueueItem) error

// Manager owns the named lanes and drives their worker loops. Item state
// transitions are serialized through one mutex; handlers run outside it.
type Manager struct {
	emitter events.Emitter
	logger  *slog.Logger

	mu        sync.Mutex
	lanes     map[string]*lane
	handlers  map[domain.QueueItemType]Handler
	onFailure map[domain.QueueItemType]Handler
	runCtx    context.Context
	wg        sync.WaitGroup
}

// NewManager creates a Manager with no lanes.
func NewManager(emitter events.Emitter, logger *slog.Logger) *Manager {
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Manager{
		emitter:   emitter,
		logger:    logger,
		lanes:     make(map[string]*lane),
		handlers:  make(map[domain.QueueItemType]Handler),
		onFailure: make(map[domain.QueueItemType]Handler),
	}
}

// Register installs the handler for one item type. Must be called before
// items of that type are processed.
func (m *Manager) Register(t domain.QueueItemType, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = h
}

// RegisterFailureHandler installs a callback invoked once when an item of
// the given type fails permanently (retries exhausted or skip-listed error).
func (m *Manager) RegisterFailureHandler(t domain.QueueItemType, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailure[t] = h
}

// CreateQueue defines a named lane. Fails fast on duplicate names or an
// invalid configuration; lanes added after Start begin processing at once.
func (m *Manager) CreateQueue(cfg domain.QueueConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("queue name is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Order == "" {
		cfg.Order = domain.OrderFIFO
	}
	if cfg.Order != domain.OrderFIFO && cfg.Order != domain.OrderPriority {
		return fmt.Errorf("unknown processing order %q", cfg.Order)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.lanes[cfg.Name]; exists {
		return fmt.Errorf("queue %q already exists", cfg.Name)
	}

	l := newLane(cfg)
	m.lanes[cfg.Name] = l

	if m.runCtx != nil {
		m.startLane(m.runCtx, l)
	}

	m.logger.Info("queue created",
		"queue", cfg.Name,
		"order", cfg.Order,
		"max_concurrent", cfg.MaxConcurrent,
	)
	return nil
}

// Enqueue adds one unit of work to a lane and returns its id. Priority is
// ignored by FIFO lanes.
func (m *Manager) Enqueue(queueName string, item *domain.QueueItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lanes[queueName]
	if !ok {
		return "", fmt.Errorf("queue %q does not exist", queueName)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Status = domain.ItemStatusPending
	item.EnqueuedAt = time.Now().UTC()

	l.seq++
	q := &queued{item: item, seq: l.seq}
	if item.NotBefore.After(time.Now()) {
		l.delayed = append(l.delayed, q)
	} else {
		heap.Push(l.ready, q)
	}
	l.notify()

	return item.ID, nil
}

// Start launches a worker loop per lane and returns. The loops stop when ctx
// is cancelled; Wait blocks until in-flight handlers finish.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx != nil {
		return
	}
	m.runCtx = ctx
	for _, l := range m.lanes {
		m.startLane(ctx, l)
	}
	m.logger.Info("queue manager started", "lanes", len(m.lanes))
}

// Wait blocks until all lane loops and handlers have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Stats returns a read-only snapshot of one lane. It never mutates state.
func (m *Manager) Stats(queueName string) (*domain.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lanes[queueName]
	if !ok {
		return nil, fmt.Errorf("queue %q does not exist", queueName)
	}
	return l.stats(), nil
}

// startLane is called with m.mu held.
func (m *Manager) startLane(ctx context.Context, l *lane) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runLane(ctx, l)
	}()
}

func (m *Manager) runLane(ctx context.Context, l *lane) {
	for {
		m.mu.Lock()
		now := time.Now()
		l.promote(now)
		for l.processing < l.cfg.MaxConcurrent && l.ready.Len() > 0 {
			q := heap.Pop(l.ready).(*queued)
			q.item.Status = domain.ItemStatusProcessing
			l.processing++

			m.wg.Add(1)
			go m.process(ctx, l, q)
		}
		wait := l.nextWakeup(now, idlePoll)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		case <-time.After(wait):
		}
	}
}

func (m *Manager) process(ctx context.Context, l *lane, q *queued) {
	defer m.wg.Done()

	err := m.invoke(ctx, q.item)

	var retried, permanent bool

	m.mu.Lock()
	if err == nil {
		q.item.Status = domain.ItemStatusCompleted
		l.completed++
	} else {
		q.item.Attempts++
		pe := domain.AsPublishError(err, "")
		q.item.LastError = pe

		if l.cfg.Retry.Skips(pe.Code) || q.item.Attempts >= l.cfg.Retry.MaxRetries {
			q.item.Status = domain.ItemStatusFailed
			l.failed++
			permanent = true
		} else {
			delay := l.cfg.Retry.Delay(q.item.Attempts)
			q.item.Status = domain.ItemStatusRetrying
			q.item.NotBefore = time.Now().Add(delay)
			l.delayed = append(l.delayed, q)
			retried = true
		}
	}
	l.processing--
	l.notify()
	m.mu.Unlock()

	switch {
	case retried:
		m.logger.Debug("queue item retried",
			"queue", l.cfg.Name,
			"item", q.item.ID,
			"attempt", q.item.Attempts,
		)
		event := events.Event{
			Type:        events.TypeQueueItemRetried,
			QueueName:   l.cfg.Name,
			QueueItemID: q.item.ID,
			Attempt:     q.item.Attempts,
			Error:       q.item.LastError.Error(),
		}
		if emitErr := m.emitter.Emit(ctx, event); emitErr != nil {
			m.logger.Debug("event emission failed", "type", event.Type, "error", emitErr)
		}
	case permanent:
		m.logger.Warn("queue item failed permanently",
			"queue", l.cfg.Name,
			"item", q.item.ID,
			"type", q.item.Type,
			"attempts", q.item.Attempts,
			"error", err,
		)
		m.mu.Lock()
		onFailure := m.onFailure[q.item.Type]
		m.mu.Unlock()
		if onFailure != nil {
			if cbErr := onFailure(ctx, q.item); cbErr != nil {
				m.logger.Error("failure handler errored", "item", q.item.ID, "error", cbErr)
			}
		}
	}
}

// invoke runs the handler for an item, converting missing handlers and
// panics into coded errors so the worker loop never crashes.
func (m *Manager) invoke(ctx context.Context, item *domain.QueueItem) (err error) {
	m.mu.Lock()
	handler := m.handlers[item.Type]
	m.mu.Unlock()

	if handler == nil {
		return domain.NewPublishError(domain.CodeInternal, "",
			fmt.Sprintf("no handler registered for item type %q", item.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			err = domain.NewPublishError(domain.CodeInternal, "", fmt.Sprintf("handler panic: %v", r))
		}
	}()

	return handler(ctx, item)
}
