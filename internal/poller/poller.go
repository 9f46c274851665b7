// Package poller waits for a commitment to appear in the ledger.
//
// Polling only reads from the ledger, so abandoning a wait (deadline or
// cancellation) leaves no remote side effect and Await may be called again
// with the same commitment at any time.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/proof"
)

// Default timing used when Options leaves a field zero.
const (
	DefaultInterval = time.Second
	DefaultDeadline = 60 * time.Second
)

var (
	// ErrInclusionTimeout is returned when the deadline passes before the
	// ledger confirms the commitment.
	ErrInclusionTimeout = errors.New("inclusion proof deadline exceeded")
	// ErrProofRejected is returned when the ledger serves a proof that can
	// never become valid for the commitment.
	ErrProofRejected = errors.New("inclusion proof rejected")
)

// State is a step of the polling state machine.
type State int

const (
	Polling State = iota
	Verifying
	Confirmed
	Retrying
	TimedOut
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Verifying:
		return "verifying"
	case Confirmed:
		return "confirmed"
	case Retrying:
		return "retrying"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options controls a single Await call.
type Options struct {
	Interval time.Duration
	Deadline time.Duration
	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(State)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	return o
}

// Await polls client until c is confirmed, the deadline passes, or ctx is
// canceled. Transport errors and PATH_NOT_INCLUDED are retried. Cancellation
// of ctx is reported as ctx.Err(); only the deadline yields ErrInclusionTimeout.
func Await(ctx context.Context, client ledger.Client, c ledger.Commitment, opts Options) (*proof.InclusionProof, error) {
	opts = opts.withDefaults()
	sub := c.Submission()
	logger := klog.Poller.With().Str("request_id", sub.RequestID.String()).Logger()

	dctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	transition := func(s State) {
		logger.Debug().Str("state", s.String()).Msg("Poller transition")
		if opts.OnTransition != nil {
			opts.OnTransition(s)
		}
	}

	for attempt := 1; ; attempt++ {
		transition(Polling)
		p, err := client.InclusionProof(dctx, sub.RequestID)
		if err == nil {
			transition(Verifying)
			switch status := p.Verify(sub.RequestID); status {
			case proof.StatusOK:
				if *p.TransactionHash != sub.TransactionHash {
					return nil, fmt.Errorf("%w: ledger holds a different transaction for %s", ErrProofRejected, sub.RequestID)
				}
				transition(Confirmed)
				logger.Debug().Int("attempts", attempt).Uint64("height", p.BlockHeight).Msg("Commitment confirmed")
				return p, nil
			case proof.StatusPathNotIncluded:
			default:
				return nil, fmt.Errorf("%w: %s", ErrProofRejected, status)
			}
		} else {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("Inclusion proof fetch failed")
		}

		transition(Retrying)
		timer := time.NewTimer(opts.Interval)
		select {
		case <-timer.C:
		case <-dctx.Done():
			timer.Stop()
		}
		if dctx.Err() != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			transition(TimedOut)
			return nil, fmt.Errorf("%w: %s after %s", ErrInclusionTimeout, sub.RequestID, opts.Deadline)
		}
	}
}
