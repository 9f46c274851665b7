package proof

import (
	"encoding/json"

	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// LeafHash is the Merkle leaf committing a request to its transaction hash.
func LeafHash(id RequestID, txHash types.DataHash) types.Hash {
	buf := make([]byte, 0, 2*types.ImprintSize)
	buf = append(buf, id.Imprint()...)
	buf = append(buf, txHash.Imprint()...)
	return crypto.Blake3(buf)
}

// Step is one level of a Merkle path.
type Step struct {
	Sibling types.Hash `json:"sibling"`
	// Left is true when Sibling sits to the left of the running hash.
	Left bool `json:"left,omitempty"`
}

// MerklePath authenticates a leaf against a round root.
type MerklePath struct {
	Root  types.Hash `json:"root"`
	Steps []Step     `json:"steps"`
}

// MarshalJSON keeps an empty path as [] rather than null.
func (p MerklePath) MarshalJSON() ([]byte, error) {
	type alias MerklePath
	if p.Steps == nil {
		p.Steps = []Step{}
	}
	return json.Marshal(alias(p))
}

// Compute folds leaf through the path and returns the implied root.
func (p MerklePath) Compute(leaf types.Hash) types.Hash {
	h := leaf
	for _, s := range p.Steps {
		if s.Left {
			h = crypto.HashConcat(s.Sibling, h)
		} else {
			h = crypto.HashConcat(h, s.Sibling)
		}
	}
	return h
}

// Verify reports whether leaf hashes up to Root.
func (p MerklePath) Verify(leaf types.Hash) bool {
	return p.Compute(leaf) == p.Root
}

// ComputeMerkleRoot calculates the merkle root of leaves.
//
// Algorithm:
//   - 0 leaves: returns zero hash
//   - 1 leaf: returns that leaf
//   - Otherwise: pairwise hash, duplicating the last element if odd count,
//     then recurse on the resulting layer until one hash remains.
func ComputeMerkleRoot(leaves []types.Hash) types.Hash {
	root, _ := BuildTree(leaves)
	return root
}

// BuildTree computes the root of leaves and the path for every leaf.
func BuildTree(leaves []types.Hash) (types.Hash, []MerklePath) {
	if len(leaves) == 0 {
		return types.Hash{}, nil
	}

	steps := make([][]Step, len(leaves))
	// pos[i] is the index of leaf i within the current level.
	pos := make([]int, len(leaves))
	for i := range pos {
		pos[i] = i
	}

	level := make([]types.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		for i, p := range pos {
			if p%2 == 0 {
				steps[i] = append(steps[i], Step{Sibling: level[p+1]})
			} else {
				steps[i] = append(steps[i], Step{Sibling: level[p-1], Left: true})
			}
			pos[i] = p / 2
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}

	root := level[0]
	paths := make([]MerklePath, len(leaves))
	for i := range paths {
		paths[i] = MerklePath{Root: root, Steps: steps[i]}
	}
	return root, paths
}
