package rpc

import (
	"context"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog/log"
)

// ProbeOptions bounds the startup reachability check.
type ProbeOptions struct {
	Attempts int           // retries after the first try
	Delay    time.Duration // between attempts
}

// warmupClassifier retries only while the node reports -28.
type warmupClassifier struct{}

func (warmupClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case IsWarmingUp(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// Probe calls getblockchaininfo, retrying while the node is warming up. A
// warming-up error is still returned once the attempts run out so callers
// can decide whether to start anyway.
func Probe(ctx context.Context, c Caller, opts ProbeOptions) (BlockchainInfo, error) {
	if opts.Attempts < 0 {
		opts.Attempts = 0
	}
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}

	var info BlockchainInfo
	r := retrier.New(retrier.ConstantBackoff(opts.Attempts, opts.Delay), warmupClassifier{})
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		var err error
		info, err = GetBlockchainInfo(ctx, c)
		if IsWarmingUp(err) {
			log.Info().Err(err).Msg("node warming up, retrying")
		}
		return err
	})
	return info, err
}
