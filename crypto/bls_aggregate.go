package crypto

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/eth2031/beacon/primitives"
)

// VerificationJob is one signature check to be performed by the batch
// verifier: either a single-key or aggregate-key check over a message.
type VerificationJob struct {
	Pubkeys []primitives.BLSPubkey
	Message []byte
	Sig     primitives.BLSSignature
}

// VerifyBatch runs jobs concurrently across a fixed-size worker pool and
// returns an error on the first failure, cancelling the remaining jobs.
// This backs the fixed-size BLS worker pool described for batch attestation
// signature verification; results are awaited by the caller (the consensus
// thread) before the state transition proceeds.
func VerifyBatch(ctx context.Context, jobs []VerificationJob, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var ok bool
			if len(job.Pubkeys) == 1 {
				ok = Verify(job.Pubkeys[0], job.Message, job.Sig)
			} else {
				ok = FastAggregateVerify(job.Pubkeys, job.Message, job.Sig)
			}
			if !ok {
				return ErrVerificationFailed
			}
			return nil
		})
	}
	return g.Wait()
}
