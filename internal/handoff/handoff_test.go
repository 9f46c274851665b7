package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/statetransfer/internal/codec"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func init() {
	klog.Disable()
}

func newNode(t *testing.T) *Node {
	t.Helper()
	n, err := New(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { n.Close() })
	return n
}

func testPackage(id types.TokenID) *codec.TransferPackage {
	return &codec.TransferPackage{
		Token: &token.Token{
			Version:      token.Version,
			Genesis:      &token.MintTransaction{Data: &token.MintTransactionData{TokenID: id, Salt: []byte{1}}},
			Transactions: []*token.Transaction{},
			Nametags:     []*token.Token{},
		},
	}
}

func TestSend_Delivered(t *testing.T) {
	sender, receiver := newNode(t), newNode(t)

	got := make(chan *codec.TransferPackage, 1)
	receiver.SetHandler(func(_ context.Context, from peer.ID, pkg *codec.TransferPackage) error {
		if from != sender.ID() {
			t.Errorf("from = %s, want %s", from, sender.ID())
		}
		got <- pkg
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := types.TokenID{0x77}
	ack, err := sender.Send(ctx, receiver.Addrs()[0], testPackage(id))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if ack.TokenID != id {
		t.Errorf("ack token = %s, want %s", ack.TokenID, id)
	}
	select {
	case pkg := <-got:
		if pkg.Token.ID() != id {
			t.Errorf("received token = %s", pkg.Token.ID())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestSend_Rejected(t *testing.T) {
	sender, receiver := newNode(t), newNode(t)
	receiver.SetHandler(func(context.Context, peer.ID, *codec.TransferPackage) error {
		return errors.New("not for me")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := sender.Send(ctx, receiver.Addrs()[0], testPackage(types.TokenID{1}))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Send() error = %v, want ErrRejected", err)
	}
}

func TestHandlerTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"default", 0, streamTimeout},
		{"from poll deadline", 3 * time.Minute, 3 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newNode(t)
			receiver, err := New(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0", HandlerTimeout: tt.timeout})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer receiver.Close()

			remaining := make(chan time.Duration, 1)
			receiver.SetHandler(func(ctx context.Context, _ peer.ID, _ *codec.TransferPackage) error {
				deadline, ok := ctx.Deadline()
				if !ok {
					return errors.New("handler context has no deadline")
				}
				remaining <- time.Until(deadline)
				return nil
			})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := sender.Send(ctx, receiver.Addrs()[0], testPackage(types.TokenID{2})); err != nil {
				t.Fatalf("Send() error: %v", err)
			}
			got := <-remaining
			if got > tt.want || got < tt.want-5*time.Second {
				t.Errorf("handler deadline in %s, want about %s", got, tt.want)
			}
		})
	}
}

func TestSend_BadAddress(t *testing.T) {
	n := newNode(t)
	if _, err := n.Send(context.Background(), "not-a-multiaddr", testPackage(types.TokenID{1})); err == nil {
		t.Error("expected error for invalid address")
	}
	if _, err := n.Send(context.Background(), "/ip4/127.0.0.1/tcp/1", testPackage(types.TokenID{1})); err == nil {
		t.Error("expected error for address without peer id")
	}
}

func TestIdentityPersists(t *testing.T) {
	dir := t.TempDir()
	a, err := New(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0", DataDir: dir})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	id := a.ID()
	a.Close()

	b, err := New(Config{ListenAddr: "/ip4/127.0.0.1/tcp/0", DataDir: dir})
	if err != nil {
		t.Fatalf("New() reopen error: %v", err)
	}
	defer b.Close()
	if b.ID() != id {
		t.Errorf("peer id changed across restarts: %s -> %s", id, b.ID())
	}
}
