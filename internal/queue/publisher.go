package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "sync/atomic"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

var (
    // ErrPublisherClosed is returned by Publish after Close.
    ErrPublisherClosed = errors.New("publisher closed")
    // ErrBufferFull is returned when events arrive faster than the broker
    // takes them.  The event is dropped.
    ErrBufferFull = errors.New("event buffer full")
)

const (
    defaultBuffer      = 1024
    defaultDialTimeout = 5 * time.Second
    sendTimeout        = 3 * time.Second
    maxRedialBackoff   = 30 * time.Second
)

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithBuffer sets how many events may wait for the broker.
func WithBuffer(n int) PublisherOption {
    return func(p *Publisher) {
        if n > 0 {
            p.buffer = n
        }
    }
}

// WithDialTimeout bounds the TCP connect and AMQP handshake.
func WithDialTimeout(d time.Duration) PublisherOption {
    return func(p *Publisher) {
        if d > 0 {
            p.dialTimeout = d
        }
    }
}

// Publisher publishes reservation events to the durable reservations
// queue.  Publish only enqueues; a single background goroutine owns the
// broker connection, so a slow or unreachable broker never blocks the
// caller.  While the broker is down, events are dropped and redials back
// off up to 30s.
type Publisher struct {
    url         string
    queue       string
    log         *zap.Logger
    buffer      int
    dialTimeout time.Duration

    events    chan ReservationEvent
    done      chan struct{}
    closed    atomic.Bool
    closeOnce sync.Once
    wg        sync.WaitGroup
    dropped   atomic.Int64
    sent      atomic.Int64

    // owned by the run goroutine
    conn       *amqp.Connection
    ch         *amqp.Channel
    backoff    time.Duration
    nextDialAt time.Time
}

// NewPublisher starts a publisher for url.  The connection is opened
// lazily by the background goroutine, so a broker that is down at startup
// does not stop the server.
func NewPublisher(url string, log *zap.Logger, opts ...PublisherOption) *Publisher {
    if log == nil {
        log = zap.NewNop()
    }
    p := &Publisher{
        url:         url,
        queue:       ReservationsQueue,
        log:         log,
        buffer:      defaultBuffer,
        dialTimeout: defaultDialTimeout,
        done:        make(chan struct{}),
    }
    for _, opt := range opts {
        opt(p)
    }
    p.events = make(chan ReservationEvent, p.buffer)
    p.wg.Add(1)
    go p.run()
    return p
}

// Publish hands ev to the background sender without waiting for the
// broker.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
    if p.closed.Load() {
        return ErrPublisherClosed
    }
    if err := ctx.Err(); err != nil {
        return err
    }
    select {
    case p.events <- ev:
        return nil
    default:
        p.dropped.Add(1)
        return fmt.Errorf("%w: %s for reservation %d", ErrBufferFull, ev.Type, ev.ReservationID)
    }
}

// Sent returns the number of events the broker accepted.
func (p *Publisher) Sent() int64 { return p.sent.Load() }

// Dropped returns the number of events that were never delivered.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close flushes buffered events when the broker is reachable, then
// releases the connection.  Later publishes fail.
func (p *Publisher) Close() error {
    p.closeOnce.Do(func() {
        p.closed.Store(true)
        close(p.done)
    })
    p.wg.Wait()
    return nil
}

func (p *Publisher) run() {
    defer p.wg.Done()
    defer p.reset()
    for {
        select {
        case ev := <-p.events:
            p.send(ev)
        case <-p.done:
            for {
                select {
                case ev := <-p.events:
                    p.send(ev)
                default:
                    return
                }
            }
        }
    }
}

func (p *Publisher) send(ev ReservationEvent) {
    body, err := json.Marshal(ev)
    if err != nil {
        p.drop(ev, fmt.Errorf("marshal event: %w", err))
        return
    }
    if err := p.ensureChannel(); err != nil {
        p.drop(ev, err)
        return
    }
    ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
    defer cancel()
    err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.EventID,
        Type:         ev.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        // drop the channel so the next event redials
        p.reset()
        p.drop(ev, fmt.Errorf("publish %s: %w", ev.Type, err))
        return
    }
    p.sent.Add(1)
}

func (p *Publisher) drop(ev ReservationEvent, err error) {
    p.dropped.Add(1)
    p.log.Warn("reservation event dropped",
        zap.String("type", ev.Type),
        zap.Uint64("reservation_id", ev.ReservationID),
        zap.Error(err))
}

// ensureChannel dials and declares the queue when no usable channel
// exists.  Failed dials are not retried before the backoff expires.
func (p *Publisher) ensureChannel() error {
    if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
        return nil
    }
    p.reset()
    if now := time.Now(); now.Before(p.nextDialAt) {
        return fmt.Errorf("broker unavailable, next dial in %s", p.nextDialAt.Sub(now).Round(time.Millisecond))
    }
    conn, ch, err := p.dial()
    if err != nil {
        p.backoff = min(max(2*p.backoff, time.Second), maxRedialBackoff)
        p.nextDialAt = time.Now().Add(p.backoff)
        return err
    }
    p.backoff, p.nextDialAt = 0, time.Time{}
    p.conn, p.ch = conn, ch
    p.log.Info("event publisher connected", zap.String("queue", p.queue))
    return nil
}

func (p *Publisher) dial() (*amqp.Connection, *amqp.Channel, error) {
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(p.dialTimeout),
    })
    if err != nil {
        return nil, nil, fmt.Errorf("dial broker: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, fmt.Errorf("open channel: %w", err)
    }
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
    }
    return conn, ch, nil
}

func (p *Publisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}
