// Package queue carries reservation lifecycle events over RabbitMQ: the
// publisher used by the reservation engine and a background consumer that
// appends every event to logs/reservations.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
)

// DefaultLogPath is where the consumer appends event lines.
var DefaultLogPath = filepath.Join("logs", "reservations.log")

// Consumer drains the reservations queue into an append-only log file.
type Consumer struct {
    URL     string
    LogPath string
    Log     *zap.Logger
}

// NewConsumer returns a consumer writing to DefaultLogPath.
func NewConsumer(url string, log *zap.Logger) *Consumer {
    if log == nil {
        log = zap.NewNop()
    }
    return &Consumer{URL: url, LogPath: DefaultLogPath, Log: log}
}

// Run connects to the broker, declares the reservations queue (durable)
// and consumes until ctx is done.  Dial failures back off exponentially
// up to 30s; a closed delivery channel triggers a reconnect.  Messages
// that cannot be handled are rejected without requeue so a poison
// message cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.DialConfig(c.URL, amqp.Config{
            Heartbeat: 10 * time.Second,
            Locale:    "en_US",
            Dial:      amqp.DefaultDial(defaultDialTimeout),
        })
        if err != nil {
            c.Log.Warn("reservation consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn("reservation consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn("reservation consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(ReservationsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(ReservationsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    c.Log.Info("reservation consumer: listening", zap.String("queue", ReservationsQueue))

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(d.Body); err != nil {
                c.Log.Error("reservation consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handle(body []byte) error {
    ev, err := decodeEvent(body)
    if err != nil {
        return err
    }
    if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func decodeEvent(body []byte) (ReservationEvent, error) {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return ev, fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.ReservationID == 0 {
        return ev, errors.New("event without type or reservation id")
    }
    return ev, nil
}

// formatLine renders one human-friendly, newline-terminated log line.
func formatLine(ev ReservationEvent) string {
    verb := "Reservation event"
    switch ev.Type {
    case EventConfirmed:
        verb = "Reservation confirmed"
    case EventCancelled:
        verb = "Reservation cancelled"
    }
    return fmt.Sprintf("[%s] %s | reservation_id=%d | user_id=%d | screening_id=%d | seat=%s | total=%d cents | txn=%s\n",
        ev.OccurredAt.UTC().Format(time.RFC3339), verb, ev.ReservationID, ev.UserID, ev.ScreeningID,
        ev.Seat, ev.AmountCents, ev.TransactionID)
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
