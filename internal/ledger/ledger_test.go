package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/storage"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func init() {
	klog.Disable()
}

type staticCommitment struct{ s *Submission }

func (c staticCommitment) Submission() *Submission { return c.s }

// newSubmission signs txSeed's hash with a fresh key over stateSeed.
func newSubmission(t *testing.T, stateSeed, txSeed byte) *Submission {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	stateHash := crypto.MustSum(types.SHA256, []byte{stateSeed})
	txHash := crypto.MustSum(types.SHA256, []byte{txSeed})
	auth, err := proof.NewAuthenticator(crypto.Secp256k1Provider{}, key, txHash, stateHash)
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}
	return &Submission{RequestID: auth.RequestID(), TransactionHash: txHash, Authenticator: auth}
}

func TestSubmission_Check(t *testing.T) {
	good := newSubmission(t, 1, 2)

	wrongID := *good
	wrongID.RequestID = proof.RequestID(crypto.MustSum(types.SHA256, []byte("other")))

	wrongHash := *good
	wrongHash.TransactionHash = crypto.MustSum(types.SHA256, []byte("tampered"))

	noAuth := *good
	noAuth.Authenticator = nil

	tests := []struct {
		name string
		s    *Submission
		want SubmitStatus
	}{
		{"valid", good, StatusSuccess},
		{"request id mismatch", &wrongID, StatusRequestIDMismatch},
		{"bad signature", &wrongHash, StatusAuthenticatorVerificationFailed},
		{"missing authenticator", &noAuth, StatusAuthenticatorVerificationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Check(); got != tt.want {
				t.Errorf("Check() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLocal_SubmitSealProve(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}

	subs := []*Submission{newSubmission(t, 1, 1), newSubmission(t, 2, 2), newSubmission(t, 3, 3)}
	for _, s := range subs {
		resp, err := l.Submit(ctx, s)
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		if resp.Status != StatusSuccess {
			t.Fatalf("Submit() status = %s", resp.Status)
		}
	}

	// Pending requests are not included yet.
	p, err := l.InclusionProof(ctx, subs[0].RequestID)
	if err != nil {
		t.Fatalf("InclusionProof() error: %v", err)
	}
	if status := p.Verify(subs[0].RequestID); status != proof.StatusPathNotIncluded {
		t.Errorf("pending status = %s, want PATH_NOT_INCLUDED", status)
	}
	if l.PendingCount() != 3 {
		t.Errorf("PendingCount() = %d, want 3", l.PendingCount())
	}

	b, err := l.Seal()
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	if b.Height != 1 || len(b.RequestIDs) != 3 {
		t.Errorf("block = height %d with %d ids", b.Height, len(b.RequestIDs))
	}
	if l.BlockHeight() != 1 || l.PendingCount() != 0 {
		t.Errorf("after seal: height %d, pending %d", l.BlockHeight(), l.PendingCount())
	}

	for _, s := range subs {
		p, err := l.InclusionProof(ctx, s.RequestID)
		if err != nil {
			t.Fatalf("InclusionProof() error: %v", err)
		}
		if status := p.Verify(s.RequestID); status != proof.StatusOK {
			t.Errorf("status = %s, want OK", status)
		}
		if p.Path.Root != b.Root {
			t.Error("proof root should match the sealed block root")
		}
	}

	// Nothing pending: no new round.
	if b, err := l.Seal(); err != nil || b != nil {
		t.Errorf("empty Seal() = %v, %v", b, err)
	}
}

func TestLocal_Resubmit(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(storage.NewMemory())
	s := newSubmission(t, 1, 1)

	if resp, _ := l.Submit(ctx, s); resp.Status != StatusSuccess {
		t.Fatalf("first submit = %s", resp.Status)
	}
	if resp, _ := l.Submit(ctx, s); resp.Status != StatusSuccess {
		t.Errorf("identical resubmit = %s, want SUCCESS", resp.Status)
	}
	if l.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", l.PendingCount())
	}
}

func TestLocal_RequestIDExists(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(storage.NewMemory())

	key, _ := crypto.GenerateKey()
	stateHash := crypto.MustSum(types.SHA256, []byte("state"))
	submit := func(tx string) SubmitStatus {
		txHash := crypto.MustSum(types.SHA256, []byte(tx))
		auth, err := proof.NewAuthenticator(crypto.Secp256k1Provider{}, key, txHash, stateHash)
		if err != nil {
			t.Fatalf("NewAuthenticator() error: %v", err)
		}
		resp, err := l.Submit(ctx, &Submission{RequestID: auth.RequestID(), TransactionHash: txHash, Authenticator: auth})
		if err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
		return resp.Status
	}

	if got := submit("first"); got != StatusSuccess {
		t.Fatalf("first = %s", got)
	}
	// Same owner and state, different transaction: a double spend.
	if got := submit("second"); got != StatusRequestIDExists {
		t.Errorf("double spend = %s, want REQUEST_ID_EXISTS", got)
	}
}

func TestLocal_RejectsInvalid(t *testing.T) {
	l, _ := NewLocal(storage.NewMemory())
	s := newSubmission(t, 1, 1)
	s.TransactionHash = crypto.MustSum(types.SHA256, []byte("x"))

	resp, err := l.Submit(context.Background(), s)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if resp.Status != StatusAuthenticatorVerificationFailed {
		t.Errorf("status = %s", resp.Status)
	}
	if l.PendingCount() != 0 {
		t.Error("rejected submission must not be pending")
	}
}

func TestLocal_AutoSeal(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(storage.NewMemory())
	l.SetAutoSeal(true)

	s := newSubmission(t, 1, 1)
	if err := Submit(ctx, l, staticCommitment{s}); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	p, _ := l.InclusionProof(ctx, s.RequestID)
	if status := p.Verify(s.RequestID); status != proof.StatusOK {
		t.Errorf("status = %s, want OK", status)
	}
}

func TestLocal_Recover(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()

	l, _ := NewLocal(db)
	sealed := newSubmission(t, 1, 1)
	l.Submit(ctx, sealed)
	if _, err := l.Seal(); err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	pending := newSubmission(t, 2, 2)
	l.Submit(ctx, pending)

	reopened, err := NewLocal(db)
	if err != nil {
		t.Fatalf("NewLocal() reopen error: %v", err)
	}
	if reopened.BlockHeight() != 1 {
		t.Errorf("BlockHeight() = %d, want 1", reopened.BlockHeight())
	}
	if reopened.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1", reopened.PendingCount())
	}
	if _, err := reopened.Seal(); err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	for _, s := range []*Submission{sealed, pending} {
		p, _ := reopened.InclusionProof(ctx, s.RequestID)
		if status := p.Verify(s.RequestID); status != proof.StatusOK {
			t.Errorf("status = %s, want OK", status)
		}
	}
}

func TestLocal_Run(t *testing.T) {
	l, _ := NewLocal(storage.NewMemory())
	l.Submit(context.Background(), newSubmission(t, 1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for l.BlockHeight() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if l.BlockHeight() != 1 {
		t.Errorf("BlockHeight() = %d, want 1", l.BlockHeight())
	}
}

func TestSubmit_Rejected(t *testing.T) {
	l, _ := NewLocal(storage.NewMemory())
	s := newSubmission(t, 1, 1)
	s.RequestID = proof.RequestID(crypto.MustSum(types.SHA256, []byte("other")))

	err := Submit(context.Background(), l, staticCommitment{s})
	var rejected *SubmissionRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want *SubmissionRejectedError", err)
	}
	if rejected.Status != StatusRequestIDMismatch {
		t.Errorf("status = %s", rejected.Status)
	}
}

func TestAggregatorClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"error":   map[string]interface{}{"code": CodeNotFound, "message": "unknown request"},
			"id":      1,
		})
	}))
	defer srv.Close()

	c := NewAggregatorClient(srv.URL, time.Second)
	_, err := c.InclusionProof(context.Background(), newSubmission(t, 1, 1).RequestID)
	if !errors.Is(err, ErrProofNotFound) {
		t.Fatalf("error = %v, want ErrProofNotFound", err)
	}
}

func TestAggregatorClient_Unreachable(t *testing.T) {
	c := NewAggregatorClient("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := c.Submit(context.Background(), newSubmission(t, 1, 1)); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestLocal_Namespace(t *testing.T) {
	db := storage.NewMemory()
	// Foreign data sharing the database must not be read as ledger records.
	db.Put([]byte("c/foreign"), []byte("{not a record"))

	l, err := NewLocal(db)
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	l.Submit(context.Background(), newSubmission(t, 1, 1))
	if _, err := l.Seal(); err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	namespaced := append(append([]byte(nil), Namespace...), keyHeight...)
	if ok, _ := db.Has(namespaced); !ok {
		t.Error("sealed height should be stored under the ledger namespace")
	}
	if ok, _ := db.Has(keyHeight); ok {
		t.Error("ledger wrote a key outside its namespace")
	}
	if got, _ := db.Get([]byte("c/foreign")); string(got) != "{not a record" {
		t.Error("foreign data was modified")
	}

	if _, err := NewLocal(db); err != nil {
		t.Errorf("NewLocal() reopen error: %v", err)
	}
}
