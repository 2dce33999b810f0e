package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceCaller replies with errs in order, then with reply.
type sequenceCaller struct {
	errs  []error
	reply string
	calls int
}

func (s *sequenceCaller) Call(_ context.Context, _ Scope, _ string, _ []any) (json.RawMessage, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return json.RawMessage(s.reply), nil
}

func TestProbe(t *testing.T) {
	warming := &Error{Code: CodeWarmingUp, Message: "Loading block index..."}
	refused := &TransportError{Method: "getblockchaininfo", Msg: "connection refused"}

	t.Run("retries while warming up", func(t *testing.T) {
		c := &sequenceCaller{errs: []error{warming, warming}, reply: `{"chain":"regtest","blocks":12}`}
		info, err := Probe(context.Background(), c, ProbeOptions{Attempts: 3, Delay: time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, "regtest", info.Chain)
		assert.Equal(t, 3, c.calls)
	})

	t.Run("gives up warming up after attempts", func(t *testing.T) {
		c := &sequenceCaller{errs: []error{warming, warming, warming}}
		_, err := Probe(context.Background(), c, ProbeOptions{Attempts: 1, Delay: time.Millisecond})
		assert.True(t, IsWarmingUp(err))
		assert.Equal(t, 2, c.calls)
	})

	t.Run("transport failure is not retried", func(t *testing.T) {
		c := &sequenceCaller{errs: []error{refused}}
		_, err := Probe(context.Background(), c, ProbeOptions{Attempts: 3, Delay: time.Millisecond})
		assert.True(t, IsTransport(err))
		assert.Equal(t, 1, c.calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := &sequenceCaller{errs: []error{warming, warming}}
		_, err := Probe(ctx, c, ProbeOptions{Attempts: 5, Delay: time.Hour})
		assert.True(t, errors.Is(err, context.Canceled) || IsWarmingUp(err))
	})
}
