package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/storage"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Namespace is the key prefix Local keeps all of its data under.
var Namespace = []byte("ledger/")

var (
	prefixRecord = []byte("c/") // c/<requestId imprint> -> record JSON
	prefixBlock  = []byte("b/") // b/<height(8, big-endian)> -> Block JSON
	keyHeight    = []byte("h")  // latest sealed height
)

// Block is one sealed round of commitments.
type Block struct {
	Height     uint64            `json:"height"`
	Root       types.Hash        `json:"root"`
	RequestIDs []proof.RequestID `json:"requestIds"`
	Timestamp  int64             `json:"timestamp"`
}

// record is the stored state of one request. Height 0 means pending.
type record struct {
	Submission *Submission      `json:"submission"`
	Height     uint64           `json:"height"`
	Path       proof.MerklePath `json:"path"`
}

// Local is an in-process aggregator backed by a storage.DB. Accepted
// submissions stay pending until Seal groups them into a Merkle round.
type Local struct {
	mu       sync.Mutex
	db       *storage.PrefixDB
	height   uint64
	root     types.Hash
	pending  []proof.RequestID
	autoSeal bool
}

// NewLocal opens a local ledger in the Namespace of db, recovering pending
// submissions.
func NewLocal(db storage.DB) (*Local, error) {
	l := &Local{db: storage.NewPrefixDB(db, Namespace)}

	raw, err := l.db.Get(keyHeight)
	switch {
	case err == nil:
		if len(raw) != 8 {
			return nil, fmt.Errorf("corrupt ledger height")
		}
		l.height = binary.BigEndian.Uint64(raw)
		b, err := l.Block(l.height)
		if err != nil {
			return nil, fmt.Errorf("load latest block: %w", err)
		}
		l.root = b.Root
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("load ledger height: %w", err)
	}

	err = l.db.ForEach(prefixRecord, func(_, value []byte) error {
		var r record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if r.Height == 0 {
			l.pending = append(l.pending, r.Submission.RequestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// SetAutoSeal makes every accepted submission seal its own round at once.
func (l *Local) SetAutoSeal(on bool) {
	l.mu.Lock()
	l.autoSeal = on
	l.mu.Unlock()
}

// Submit implements Client.
func (l *Local) Submit(_ context.Context, s *Submission) (*SubmitResponse, error) {
	if s == nil {
		return nil, fmt.Errorf("nil submission")
	}
	if status := s.Check(); status != StatusSuccess {
		klog.Ledger.Debug().Str("request_id", s.RequestID.String()).Str("status", string(status)).Msg("Submission rejected")
		return &SubmitResponse{Status: status}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.record(s.RequestID)
	switch {
	case err == nil:
		if sameSubmission(existing.Submission, s) {
			return &SubmitResponse{Status: StatusSuccess}, nil
		}
		return &SubmitResponse{Status: StatusRequestIDExists}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if err := l.putRecord(&record{Submission: s}); err != nil {
		return nil, err
	}
	l.pending = append(l.pending, s.RequestID)
	klog.Ledger.Debug().Str("request_id", s.RequestID.String()).Msg("Submission accepted")

	if l.autoSeal {
		if _, err := l.seal(); err != nil {
			return nil, err
		}
	}
	return &SubmitResponse{Status: StatusSuccess}, nil
}

// InclusionProof implements Client. Unknown and pending requests get a
// non-inclusion proof against the latest root.
func (l *Local) InclusionProof(_ context.Context, id proof.RequestID) (*proof.InclusionProof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.record(id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && r.Height == 0) {
		return &proof.InclusionProof{
			Path:        proof.MerklePath{Root: l.root},
			BlockHeight: l.height,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	txHash := r.Submission.TransactionHash
	return &proof.InclusionProof{
		Path:            r.Path,
		Authenticator:   r.Submission.Authenticator,
		TransactionHash: &txHash,
		BlockHeight:     r.Height,
	}, nil
}

// BlockHeight returns the latest sealed height.
func (l *Local) BlockHeight() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// PendingCount returns the number of accepted, unsealed submissions.
func (l *Local) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Block returns a sealed round by height.
func (l *Local) Block(height uint64) (*Block, error) {
	data, err := l.db.Get(blockKey(height))
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	return &b, nil
}

// Seal groups every pending submission into a new round.
// It returns nil when nothing is pending.
func (l *Local) Seal() (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seal()
}

// Run seals a round every interval until ctx is done.
func (l *Local) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Seal(); err != nil {
				klog.Ledger.Error().Err(err).Msg("Seal round failed")
			}
		}
	}
}

func (l *Local) seal() (*Block, error) {
	if len(l.pending) == 0 {
		return nil, nil
	}
	ids := append([]proof.RequestID(nil), l.pending...)
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i].Imprint(), ids[j].Imprint()) < 0
	})

	records := make([]*record, len(ids))
	leaves := make([]types.Hash, len(ids))
	for i, id := range ids {
		r, err := l.record(id)
		if err != nil {
			return nil, fmt.Errorf("load pending %s: %w", id, err)
		}
		records[i] = r
		leaves[i] = proof.LeafHash(id, r.Submission.TransactionHash)
	}
	root, paths := proof.BuildTree(leaves)

	height := l.height + 1
	b := &Block{Height: height, Root: root, RequestIDs: ids, Timestamp: time.Now().Unix()}
	blockData, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("block marshal: %w", err)
	}
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], height)

	batch := l.db.NewBatch()
	for i, r := range records {
		r.Height = height
		r.Path = paths[i]
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("record marshal: %w", err)
		}
		if err := batch.Put(recordKey(r.Submission.RequestID), data); err != nil {
			return nil, err
		}
	}
	if err := batch.Put(blockKey(height), blockData); err != nil {
		return nil, err
	}
	if err := batch.Put(keyHeight, heightBuf[:]); err != nil {
		return nil, err
	}
	if err := batch.Commit(); err != nil {
		return nil, fmt.Errorf("commit round %d: %w", height, err)
	}

	l.height = height
	l.root = root
	l.pending = nil
	klog.Ledger.Info().Uint64("height", height).Int("commitments", len(ids)).Str("root", root.String()).Msg("Round sealed")
	return b, nil
}

func (l *Local) record(id proof.RequestID) (*record, error) {
	data, err := l.db.Get(recordKey(id))
	if err != nil {
		return nil, err
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &r, nil
}

func (l *Local) putRecord(r *record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("record marshal: %w", err)
	}
	return l.db.Put(recordKey(r.Submission.RequestID), data)
}

func sameSubmission(a, b *Submission) bool {
	if a.RequestID != b.RequestID || a.TransactionHash != b.TransactionHash {
		return false
	}
	return bytes.Equal(a.Authenticator.Signature, b.Authenticator.Signature) &&
		bytes.Equal(a.Authenticator.PublicKey, b.Authenticator.PublicKey)
}

func recordKey(id proof.RequestID) []byte {
	return append(append([]byte(nil), prefixRecord...), id.Imprint()...)
}

func blockKey(height uint64) []byte {
	k := append([]byte(nil), prefixBlock...)
	return binary.BigEndian.AppendUint64(k, height)
}
