package commit

import (
	"encoding/binary"
	"errors"
	"math/bits"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

var (
	BundleTag = []byte("urn:sealtransfer:bundle#v2")
	LeafTag   = []byte("urn:sealtransfer:commit-leaf#v1")
	EmptyTag  = []byte("urn:sealtransfer:commit-empty#v1")
	BranchTag = []byte("urn:sealtransfer:commit-branch#v1")
)

// MaxTreeDepth bounds the commitment tree. Contracts whose slots still
// collide at this depth cannot share a witness transaction.
const MaxTreeDepth = 16

var ErrSlotCollision = errors.New("contracts collide on every tree slot")

// BundleIDOf hashes the sorted operation ids of one contract bundle together
// with its sorted input map.
func BundleIDOf(ops []model.OpID, inputs []model.BundleInput) model.BundleID {
	sorted := sortedOps(ops)
	ins := append([]model.BundleInput(nil), inputs...)
	model.SortInputs(ins)

	parts := make([][]byte, 0, len(sorted)+len(ins)+2)
	parts = append(parts, binary.LittleEndian.AppendUint32(nil, uint32(len(sorted))))
	for i := range sorted {
		parts = append(parts, sorted[i][:])
	}
	parts = append(parts, binary.LittleEndian.AppendUint32(nil, uint32(len(ins))))
	for _, in := range ins {
		buf := make([]byte, 0, 68)
		buf = append(buf, in.Outpoint.Hash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.Outpoint.Index)
		buf = append(buf, in.Op[:]...)
		parts = append(parts, buf)
	}
	return model.BundleID(*chainhash.TaggedHash(BundleTag, parts...))
}

// Leaf is the tree leaf committing to bundle under contract.
func Leaf(contract model.ContractID, bundle model.BundleID) chainhash.Hash {
	return *chainhash.TaggedHash(LeafTag, contract[:], bundle[:])
}

// Slot is the only leaf position contract may take in a tree of depth.
func Slot(contract model.ContractID, depth int) uint32 {
	mask := uint32(1)<<uint(depth) - 1
	return binary.LittleEndian.Uint32(contract[:4]) & mask
}

func emptyLeaf(slot uint32) chainhash.Hash {
	return *chainhash.TaggedHash(EmptyTag, binary.LittleEndian.AppendUint32(nil, slot))
}

func branch(left, right chainhash.Hash) chainhash.Hash {
	return *chainhash.TaggedHash(BranchTag, left[:], right[:])
}

// treeDepth is the smallest depth at which every contract gets its own slot.
func treeDepth(contracts []model.ContractID) (int, error) {
	start := 0
	if len(contracts) > 1 {
		start = bits.Len(uint(len(contracts) - 1))
	}
	for depth := start; depth <= MaxTreeDepth; depth++ {
		used := make(map[uint32]struct{}, len(contracts))
		free := true
		for _, c := range contracts {
			s := Slot(c, depth)
			if _, taken := used[s]; taken {
				free = false
				break
			}
			used[s] = struct{}{}
		}
		if free {
			return depth, nil
		}
	}
	return 0, ErrSlotCollision
}

// buildTree places each leaf at its contract's slot in a full tree, fills the
// remaining slots with empty leaves and returns the root and one proof per leaf.
func buildTree(contracts []model.ContractID, leaves []chainhash.Hash) (chainhash.Hash, []model.MerkleProof, error) {
	depth, err := treeDepth(contracts)
	if err != nil {
		return chainhash.Hash{}, nil, err
	}
	level := make([]chainhash.Hash, 1<<uint(depth))
	for i := range level {
		level[i] = emptyLeaf(uint32(i))
	}
	proofs := make([]model.MerkleProof, len(leaves))
	pos := make([]uint32, len(leaves))
	for i, leaf := range leaves {
		slot := Slot(contracts[i], depth)
		level[slot] = leaf
		proofs[i].Position = slot
		pos[i] = slot
	}

	for len(level) > 1 {
		for i := range proofs {
			proofs[i].Siblings = append(proofs[i].Siblings, level[pos[i]^1])
			pos[i] /= 2
		}
		next := make([]chainhash.Hash, len(level)/2)
		for j := range next {
			next[j] = branch(level[2*j], level[2*j+1])
		}
		level = next
	}
	return level[0], proofs, nil
}

// RootOf folds proof over leaf.
func RootOf(leaf chainhash.Hash, proof model.MerkleProof) chainhash.Hash {
	h := leaf
	pos := proof.Position
	for _, sib := range proof.Siblings {
		if pos%2 == 0 {
			h = branch(h, sib)
		} else {
			h = branch(sib, h)
		}
		pos /= 2
	}
	return h
}

func sortedOps(ops []model.OpID) []model.OpID {
	sorted := append([]model.OpID(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })
	return sorted
}
