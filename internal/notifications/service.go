package notifications

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"festival/internal/shared/config"
	"festival/pkg/logger"
)

// Publisher is what the domain services see. Publish never blocks the caller
// and never reports delivery failures back to it.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

const (
	defaultSendTimeout  = 5 * time.Second
	defaultRetryBackoff = 200 * time.Millisecond
)

// Dispatcher fans events out to a Sink from a single background worker.
// When the buffer is full new events are dropped. Each event gets one retry.
type Dispatcher struct {
	sink         Sink
	queue        chan Event
	sendTimeout  time.Duration
	retryBackoff time.Duration

	delivered atomic.Int64
	dropped   atomic.Int64

	// State
	isRunning bool
	mu        sync.Mutex
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewDispatcher(sink Sink, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Dispatcher{
		sink:         sink,
		queue:        make(chan Event, bufferSize),
		sendTimeout:  defaultSendTimeout,
		retryBackoff: defaultRetryBackoff,
		done:         make(chan struct{}),
	}
}

func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		logger.GetDefault().WarnContext(ctx, "event buffer full, dropping event",
			"event", event.Type, "entity_id", event.EntityID.String())
	}
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("event dispatcher is already running")
	}
	d.isRunning = true

	d.wg.Add(1)
	go d.run(ctx)

	logger.GetDefault().Info("event dispatcher started", "buffer", cap(d.queue))
	return nil
}

// Stop flushes whatever is already queued, then closes the sink
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return fmt.Errorf("event dispatcher is not running")
	}

	close(d.done)
	d.wg.Wait()
	d.isRunning = false

	if err := d.sink.Close(); err != nil {
		return fmt.Errorf("failed to close event sink: %w", err)
	}

	logger.GetDefault().Info("event dispatcher stopped",
		"delivered", d.delivered.Load(), "dropped", d.dropped.Load())
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-ctx.Done():
			d.drain()
			return
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	err := d.send(event)
	if err != nil {
		time.Sleep(d.retryBackoff)
		err = d.send(event)
	}
	if err != nil {
		d.dropped.Add(1)
		logger.GetDefault().WithError(err).Error("event delivery failed after retry",
			"event", event.Type, "entity_id", event.EntityID.String())
		return
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) send(event Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()
	return d.sink.Send(ctx, event)
}

func (d *Dispatcher) Delivered() int64 { return d.delivered.Load() }

func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// NewSinkFromConfig builds the sink selected by NOTIFY_BROKER
func NewSinkFromConfig(cfg config.NotificationsConfig) (Sink, error) {
	switch cfg.Broker {
	case "kafka":
		producerConfig := DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.KafkaBrokers
		producerConfig.Topic = cfg.KafkaTopic
		return NewKafkaSink(producerConfig)
	case "rabbitmq":
		return NewRabbitMQSink(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	case "log", "":
		return LogSink{}, nil
	default:
		return nil, fmt.Errorf("unknown notification broker %q", cfg.Broker)
	}
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
