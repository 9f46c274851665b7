// Package handoff delivers transfer packages directly to a peer over a
// libp2p stream, as an out-of-band channel for offline transfers.
package handoff

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/Klingon-tech/statetransfer/internal/codec"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

const (
	// Protocol is the stream protocol for package delivery.
	Protocol = protocol.ID("/xfer/offline/1.0.0")

	// streamTimeout bounds reading a package or an acknowledgement.
	streamTimeout = 30 * time.Second

	// maxAckSize caps an acknowledgement read.
	maxAckSize = 4096
)

// ErrRejected is returned by Send when the receiver refused the package.
var ErrRejected = errors.New("package rejected by peer")

// Handler processes a received package. A non-nil error is reported back to
// the sender.
type Handler func(ctx context.Context, from peer.ID, pkg *codec.TransferPackage) error

// Ack is the receiver's answer to a delivered package.
type Ack struct {
	TokenID types.TokenID `json:"tokenId"`
	Error   string        `json:"error,omitempty"`
}

// Config holds hand-off node configuration.
type Config struct {
	// ListenAddr is a multiaddr such as /ip4/0.0.0.0/tcp/4100.
	ListenAddr string
	// DataDir, if set, persists the node key so the peer id survives restarts.
	DataDir string
	// HandlerTimeout bounds one Handler call and how long Send waits for an
	// acknowledgement. Receivers that finalize inline should set it to the
	// inclusion poll deadline plus some margin. Defaults to streamTimeout.
	HandlerTimeout time.Duration
}

// Node is a libp2p host speaking Protocol.
type Node struct {
	host    host.Host
	timeout time.Duration
}

// New starts a hand-off node.
func New(cfg Config) (*Node, error) {
	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(cfg.ListenAddr),
	}
	if cfg.DataDir != "" {
		priv, err := loadOrCreateIdentity(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("load handoff identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}
	timeout := cfg.HandlerTimeout
	if timeout <= 0 {
		timeout = streamTimeout
	}
	return &Node{host: h, timeout: timeout}, nil
}

// ID returns the local peer id.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the full multiaddrs a sender can dial.
func (n *Node) Addrs() []string {
	var addrs []string
	for _, a := range n.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, n.host.ID()))
	}
	return addrs
}

// Close shuts the host down.
func (n *Node) Close() error {
	return n.host.Close()
}

// SetHandler starts accepting packages.
func (n *Node) SetHandler(fn Handler) {
	n.host.SetStreamHandler(Protocol, func(stream network.Stream) {
		defer stream.Close()
		from := stream.Conn().RemotePeer()
		logger := klog.Handoff.With().Str("peer", from.String()).Logger()

		_ = stream.SetReadDeadline(time.Now().Add(streamTimeout))
		data, err := io.ReadAll(io.LimitReader(stream, codec.MaxPackageSize+1))
		if err != nil {
			logger.Debug().Err(err).Msg("Read package failed")
			return
		}

		var ack Ack
		pkg, err := codec.UnmarshalCompact(data)
		if err == nil {
			ack.TokenID = tokenID(pkg)
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			err = fn(ctx, from, pkg)
			cancel()
		}
		if err != nil {
			ack.Error = err.Error()
			logger.Warn().Err(err).Msg("Package refused")
		} else {
			logger.Info().Str("token_id", ack.TokenID.String()).Msg("Package received")
		}
		_ = stream.SetWriteDeadline(time.Now().Add(streamTimeout))
		json.NewEncoder(stream).Encode(&ack)
	})
}

// Send delivers pkg to the peer at target, a multiaddr ending in /p2p/<id>,
// and waits for its acknowledgement.
func (n *Node) Send(ctx context.Context, target string, pkg *codec.TransferPackage) (*Ack, error) {
	addr, err := ma.NewMultiaddr(target)
	if err != nil {
		return nil, fmt.Errorf("parse peer address: %w", err)
	}
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("parse peer address: %w", err)
	}
	data, err := codec.MarshalCompact(pkg)
	if err != nil {
		return nil, err
	}

	if err := n.host.Connect(ctx, *info); err != nil {
		return nil, fmt.Errorf("connect %s: %w", info.ID, err)
	}
	stream, err := n.host.NewStream(ctx, info.ID, Protocol)
	if err != nil {
		return nil, fmt.Errorf("open handoff stream: %w", err)
	}
	defer stream.Close()

	_ = stream.SetWriteDeadline(time.Now().Add(streamTimeout))
	if _, err := stream.Write(data); err != nil {
		stream.Reset()
		return nil, fmt.Errorf("write package: %w", err)
	}
	// Signal the end of the package.
	stream.CloseWrite()

	_ = stream.SetReadDeadline(time.Now().Add(n.timeout + streamTimeout))
	var ack Ack
	if err := json.NewDecoder(io.LimitReader(stream, maxAckSize)).Decode(&ack); err != nil {
		return nil, fmt.Errorf("read ack: %w", err)
	}
	if ack.Error != "" {
		return &ack, fmt.Errorf("%w: %s", ErrRejected, ack.Error)
	}
	klog.Handoff.Debug().Str("peer", info.ID.String()).Str("token_id", ack.TokenID.String()).Msg("Package delivered")
	return &ack, nil
}

func tokenID(pkg *codec.TransferPackage) types.TokenID {
	if pkg.Token == nil || pkg.Token.Genesis == nil || pkg.Token.Genesis.Data == nil {
		return types.TokenID{}
	}
	return pkg.Token.ID()
}

// loadOrCreateIdentity loads or creates a persistent Ed25519 peer key.
func loadOrCreateIdentity(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "handoff.key")

	data, err := os.ReadFile(keyPath)
	if err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0600); err != nil {
		return nil, fmt.Errorf("save node key: %w", err)
	}
	return priv, nil
}
