/**
 * Asynq text sink for the stream OCR worker
 *
 * Enqueues one task per distinct recognized text so downstream workers can
 * act on readings. Consecutive identical texts are enqueued once.
 */

package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/hibiken/asynq"
)

// TaskTypeText is the asynq task type carrying a TextEvent payload
const TaskTypeText = "ocr:text"

// QueueSinkConfig holds queue sink configuration
type QueueSinkConfig struct {
	RedisURL   string
	QueueName  string
	InstanceID string
	MaxRetry   int
	Logger     *logging.Logger
}

// QueueSink submits recognized text as asynq tasks
type QueueSink struct {
	client  *asynq.Client
	config  *QueueSinkConfig
	log     *logging.Logger
	pending chan TextEvent
	last    string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueueSink creates an asynq client for cfg
func NewQueueSink(cfg *QueueSinkConfig) (*QueueSink, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &QueueSink{
		client:  asynq.NewClient(redisOpt),
		config:  cfg,
		log:     cfg.Logger,
		pending: make(chan TextEvent, 16),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// NewTextTask builds the task for event
func NewTextTask(event TextEvent) (*asynq.Task, error) {
	payload, err := event.encode()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return asynq.NewTask(TaskTypeText, payload), nil
}

// Start begins submitting tasks
func (q *QueueSink) Start() {
	q.log.Info("Starting queue sink", "queue", q.config.QueueName)
	q.wg.Add(1)
	go q.run()
}

// Stop stops submitting and closes the client
func (q *QueueSink) Stop() error {
	q.log.Info("Stopping queue sink")
	q.cancel()
	q.wg.Wait()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	return nil
}

// SetText queues text unless it repeats the previous one
func (q *QueueSink) SetText(text string) {
	if text == q.last {
		return
	}
	select {
	case q.pending <- newTextEvent(q.config.InstanceID, text):
		q.last = text
	default:
		q.log.Warn("Queue sink buffer full, dropping text")
	}
}

func (q *QueueSink) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case event := <-q.pending:
			if err := q.enqueue(event); err != nil {
				q.log.Warn("Failed to enqueue text task", "queue", q.config.QueueName, "error", err)
			}
		}
	}
}

func (q *QueueSink) enqueue(event TextEvent) error {
	task, err := NewTextTask(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(q.ctx, 5*time.Second)
	defer cancel()

	info, err := q.client.EnqueueContext(ctx, task,
		asynq.Queue(q.config.QueueName),
		asynq.MaxRetry(q.config.MaxRetry))
	if err != nil {
		return err
	}
	q.log.Debug("Text task enqueued", "task_id", info.ID, "queue", info.Queue)
	return nil
}
