// Package groundlink receives the downlink stream at the ground station
// over TCP or UDP and hands every parsed sentence to a Handler.
package groundlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-downlink/internal/rate"
)

//ErrRetriesExhausted ends Run after MaxRetries consecutive failures.
var ErrRetriesExhausted = errors.New("retries exhausted")

//Handler receives every parsed sentence.
type Handler func(s sentence.Sentence)

type options struct {
	reconnect    time.Duration
	reconnectMax time.Duration
	maxRetries   int
	dialTimeout  time.Duration
	pingInterval time.Duration
	errorHandler func(error)
	received     *rate.Counter
	lineOpts     []sentence.Option
}

type Option func(*options)

func WithReconnectInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnect = d
		}
	}
}

func WithReconnectMax(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnectMax = d
		}
	}
}

//WithMaxRetries bounds consecutive failed attempts, 0 retries forever.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pingInterval = d
		}
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.errorHandler = fn
		}
	}
}

//WithReceivedCounter counts every received line.
func WithReceivedCounter(c *rate.Counter) Option {
	return func(o *options) {
		o.received = c
	}
}

//WithLineOptions configures the reassembly of the TCP stream.
func WithLineOptions(opts ...sentence.Option) Option {
	return func(o *options) {
		o.lineOpts = opts
	}
}

func newOptions(opts []Option) options {
	o := options{
		reconnect:    time.Second,
		reconnectMax: 30 * time.Second,
		dialTimeout:  5 * time.Second,
		pingInterval: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) handleError(err error) {
	if o.errorHandler != nil {
		o.errorHandler(err)
	}
}

func (o *options) sleepBackoff(ctx context.Context, attempt int) {
	wait := min(o.reconnect*time.Duration(attempt), o.reconnectMax)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}

//TCPReceiver reads newline terminated lines from the daemon.
type TCPReceiver struct {
	addr    string
	handler Handler
	options
}

func NewTCPReceiver(addr string, handler Handler, opts ...Option) *TCPReceiver {
	return &TCPReceiver{
		addr:    addr,
		handler: handler,
		options: newOptions(opts),
	}
}

//Run connects and reconnects until ctx is done or the retries run out.
func (r *TCPReceiver) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		err := r.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			attempt = 0
			r.sleepBackoff(ctx, 1)
			continue
		}
		r.handleError(err)
		attempt++
		if r.maxRetries > 0 && attempt >= r.maxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		r.sleepBackoff(ctx, attempt)
	}
}

//session returns nil when at least one line was received before the
//connection ended.
func (r *TCPReceiver) session(ctx context.Context) error {
	d := net.Dialer{Timeout: r.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	lr := sentence.NewLineReader(conn, sentence.DefaultBufferSize, r.lineOpts...)
	received := false
	for {
		line, err := lr.ReadLine()
		if err != nil {
			if received {
				return nil
			}
			return fmt.Errorf("connection to %s: %w", r.addr, err)
		}
		received = true
		r.received.Add(1)
		if r.handler != nil {
			r.handler(sentence.Parse(line))
		}
	}
}
