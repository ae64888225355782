package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull = errors.New("mail queue full")
	ErrClosed    = errors.New("mail dispatcher closed")
)

// Config controls dispatcher buffering.
type Config struct {
	BufferSize int
}

// Dispatcher asynchronously forwards messages to a Sender.
type Dispatcher struct {
	sender    Sender
	logger    *slog.Logger
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	closeOnce sync.Once

	// mu orders sends against Close: once closed is set under the write
	// lock, no Enqueue can reach the channel.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker goroutine.
func NewDispatcher(cfg Config, sender Sender, logger *slog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}

	d := &Dispatcher{
		sender: sender,
		logger: logger,
		ch:     make(chan Message, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if err := d.sender.Send(context.Background(), msg); err != nil {
		d.failed.Add(1)
		d.logger.Error("mail delivery failed", "kind", msg.Kind, "to", msg.To, "error", err)
		return
	}
	d.sent.Add(1)
}

// Enqueue queues msg without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	if d == nil {
		return ErrClosed
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.ch <- msg:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// NotifyVerification queues a verification email.
func (d *Dispatcher) NotifyVerification(_ context.Context, to, displayName, link string) error {
	return d.Enqueue(VerificationMessage(to, displayName, link))
}

// NotifyPasswordReset queues a password reset email.
func (d *Dispatcher) NotifyPasswordReset(_ context.Context, to, displayName, link string) error {
	return d.Enqueue(PasswordResetMessage(to, displayName, link))
}

// Close stops accepting messages and drains the queue.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.done)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() (sent, failed, dropped uint64) {
	if d == nil {
		return 0, 0, 0
	}
	return d.sent.Load(), d.failed.Load(), d.dropped.Load()
}
