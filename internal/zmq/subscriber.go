package zmq

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/metrics"
)

// receiver is the part of a zmq4.Socket the read loop needs.
type receiver interface {
	Recv() (zmq4.Msg, error)
	Close() error
}

// Subscriber is a long-lived listener on one SUB socket. Events is closed
// when the connection ends; Err then reports why.
type Subscriber struct {
	addr   string
	events chan Event
	err    error
	now    func() time.Time
}

func NewSubscriber(addr string) *Subscriber {
	return &Subscriber{
		addr:   addr,
		events: make(chan Event, 64),
		now:    time.Now,
	}
}

func (s *Subscriber) Addr() string { return s.addr }

func (s *Subscriber) Events() <-chan Event { return s.events }

// Err is only meaningful after Events has been closed.
func (s *Subscriber) Err() error { return s.err }

// Start dials the endpoint and reads until ctx is cancelled or the socket fails.
func (s *Subscriber) Start(ctx context.Context) {
	sock := zmq4.NewSub(ctx)
	if err := sock.Dial(s.addr); err != nil {
		_ = sock.Close()
		s.err = fmt.Errorf("failed to connect to %s: %w", s.addr, err)
		log.Warn().Err(err).Str("addr", s.addr).Msg("zmq dial failed")
		close(s.events)
		return
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sock.Close()
		s.err = fmt.Errorf("failed to subscribe: %w", err)
		close(s.events)
		return
	}
	log.Info().Str("addr", s.addr).Msg("zmq connected")

	go s.run(ctx, sock)
}

func (s *Subscriber) run(ctx context.Context, sock receiver) {
	defer close(s.events)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = sock.Close()
		case <-stop:
		}
	}()

	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.err = fmt.Errorf("zmq receive failed: %w", err)
				log.Warn().Err(err).Str("addr", s.addr).Msg("zmq disconnected")
			}
			_ = sock.Close()
			return
		}

		ev, ok := DecodeFrames(msg.Frames, s.now())
		if !ok {
			continue
		}
		metrics.RecordZMQEvent(ev.Kind.String())

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
