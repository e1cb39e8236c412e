/**
 * Redis text publisher for the stream OCR worker
 *
 * Publishes every recognized text as a JSON TextEvent on a Redis pub/sub
 * channel. The worker goroutine only enqueues; a dedicated goroutine talks to
 * Redis, so a slow or unreachable server never delays an iteration.
 */

package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adverant/nexus/streamocr-worker/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisPublisherConfig holds publisher configuration
type RedisPublisherConfig struct {
	RedisURL   string
	Channel    string
	InstanceID string
	BufferSize int
	Logger     *logging.Logger
}

// RedisPublisher publishes recognized text to a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	config  *RedisPublisherConfig
	log     *logging.Logger
	pending chan TextEvent
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRedisPublisher connects to Redis and verifies the connection
func NewRedisPublisher(cfg *RedisPublisherConfig) (*RedisPublisher, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = "streamocr:text"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisPublisher{
		client:  client,
		config:  cfg,
		log:     cfg.Logger,
		pending: make(chan TextEvent, cfg.BufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins publishing queued events
func (p *RedisPublisher) Start() {
	p.log.Info("Starting Redis publisher", "channel", p.config.Channel)
	p.wg.Add(1)
	go p.run()
}

// Stop stops publishing and closes the Redis client
func (p *RedisPublisher) Stop() error {
	p.log.Info("Stopping Redis publisher")
	p.cancel()
	p.wg.Wait()
	return p.client.Close()
}

// SetText queues text for publishing. Drops the event when the buffer is full.
func (p *RedisPublisher) SetText(text string) {
	select {
	case p.pending <- newTextEvent(p.config.InstanceID, text):
	default:
		p.log.Warn("Redis publish buffer full, dropping text")
	}
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case event := <-p.pending:
			if err := p.publish(event); err != nil {
				p.log.Warn("Failed to publish text", "channel", p.config.Channel, "error", err)
			}
		}
	}
}

func (p *RedisPublisher) publish(event TextEvent) error {
	data, err := event.encode()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(p.ctx, 2*time.Second)
	defer cancel()
	return p.client.Publish(ctx, p.config.Channel, data).Err()
}
