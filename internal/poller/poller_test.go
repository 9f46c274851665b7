package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/storage"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func init() {
	klog.Disable()
}

type staticCommitment struct{ s *ledger.Submission }

func (c staticCommitment) Submission() *ledger.Submission { return c.s }

func newCommitment(t *testing.T, seed byte) staticCommitment {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	stateHash := crypto.MustSum(types.SHA256, []byte{seed})
	txHash := crypto.MustSum(types.SHA256, []byte{seed, seed})
	auth, err := proof.NewAuthenticator(crypto.Secp256k1Provider{}, key, txHash, stateHash)
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}
	return staticCommitment{&ledger.Submission{RequestID: auth.RequestID(), TransactionHash: txHash, Authenticator: auth}}
}

// flakyClient fails the first n proof fetches before delegating.
type flakyClient struct {
	ledger.Client
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakyClient) InclusionProof(ctx context.Context, id proof.RequestID) (*proof.InclusionProof, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	return f.Client.InclusionProof(ctx, id)
}

// tamperClient returns a proof whose path does not reach its root.
type tamperClient struct{ ledger.Client }

func (c tamperClient) InclusionProof(ctx context.Context, id proof.RequestID) (*proof.InclusionProof, error) {
	p, err := c.Client.InclusionProof(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Path.Root = types.Hash{0xde, 0xad}
	return p, nil
}

func sealedLedger(t *testing.T, c staticCommitment) *ledger.Local {
	t.Helper()
	l, err := ledger.NewLocal(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	l.SetAutoSeal(true)
	if err := ledger.Submit(context.Background(), l, c); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	return l
}

func TestAwait_Confirmed(t *testing.T) {
	c := newCommitment(t, 1)
	l := sealedLedger(t, c)

	var states []State
	p, err := Await(context.Background(), l, c, Options{
		Interval:     10 * time.Millisecond,
		Deadline:     time.Second,
		OnTransition: func(s State) { states = append(states, s) },
	})
	if err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if p.Verify(c.s.RequestID) != proof.StatusOK {
		t.Error("returned proof should verify")
	}
	want := []State{Polling, Verifying, Confirmed}
	if len(states) != len(want) {
		t.Fatalf("transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestAwait_Idempotent(t *testing.T) {
	c := newCommitment(t, 1)
	l := sealedLedger(t, c)
	opts := Options{Interval: 10 * time.Millisecond, Deadline: time.Second}

	first, err := Await(context.Background(), l, c, opts)
	if err != nil {
		t.Fatalf("first Await() error: %v", err)
	}
	height := l.BlockHeight()
	second, err := Await(context.Background(), l, c, opts)
	if err != nil {
		t.Fatalf("second Await() error: %v", err)
	}
	if first.Path.Root != second.Path.Root || *first.TransactionHash != *second.TransactionHash {
		t.Error("repeated Await should return the same proof")
	}
	if l.BlockHeight() != height {
		t.Error("polling must not change the ledger")
	}
}

func TestAwait_RetriesTransportErrors(t *testing.T) {
	c := newCommitment(t, 1)
	client := &flakyClient{Client: sealedLedger(t, c), fails: 3}

	if _, err := Await(context.Background(), client, c, Options{Interval: 5 * time.Millisecond, Deadline: time.Second}); err != nil {
		t.Fatalf("Await() error: %v", err)
	}
	if client.calls != 4 {
		t.Errorf("calls = %d, want 4", client.calls)
	}
}

func TestAwait_RetriesUntilSealed(t *testing.T) {
	c := newCommitment(t, 1)
	l, _ := ledger.NewLocal(storage.NewMemory())
	if err := ledger.Submit(context.Background(), l, c); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		l.Seal()
	}()
	if _, err := Await(context.Background(), l, c, Options{Interval: 5 * time.Millisecond, Deadline: 2 * time.Second}); err != nil {
		t.Fatalf("Await() error: %v", err)
	}
}

func TestAwait_Timeout(t *testing.T) {
	c := newCommitment(t, 1)
	l, _ := ledger.NewLocal(storage.NewMemory())
	interval := 20 * time.Millisecond

	var last State
	_, err := Await(context.Background(), l, c, Options{
		Interval:     interval,
		Deadline:     2 * interval,
		OnTransition: func(s State) { last = s },
	})
	if !errors.Is(err, ErrInclusionTimeout) {
		t.Fatalf("Await() error = %v, want ErrInclusionTimeout", err)
	}
	if errors.Is(err, ErrProofRejected) || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should not match other error kinds: %v", err)
	}
	if last != TimedOut {
		t.Errorf("final state = %s, want timed_out", last)
	}
}

func TestAwait_Canceled(t *testing.T) {
	c := newCommitment(t, 1)
	l, _ := ledger.NewLocal(storage.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := Await(ctx, l, c, Options{Interval: 5 * time.Millisecond, Deadline: 10 * time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Await() error = %v, want context.Canceled", err)
	}
}

func TestAwait_ProofRejected(t *testing.T) {
	c := newCommitment(t, 1)
	client := tamperClient{sealedLedger(t, c)}

	_, err := Await(context.Background(), client, c, Options{Interval: 5 * time.Millisecond, Deadline: time.Second})
	if !errors.Is(err, ErrProofRejected) {
		t.Fatalf("Await() error = %v, want ErrProofRejected", err)
	}
}

func TestState_String(t *testing.T) {
	if Polling.String() != "polling" || TimedOut.String() != "timed_out" {
		t.Error("unexpected state names")
	}
	if State(99).String() != "State(99)" {
		t.Errorf("unknown state = %s", State(99).String())
	}
}
