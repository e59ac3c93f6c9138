// Package commit embeds the commitment to a bundle of operations into a
// witness transaction skeleton and verifies anchors against transactions.
package commit

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/prefab"
)

var (
	ErrMixedCloseMethods  = errors.New("bundle mixes close methods")
	ErrNoHostOutput       = errors.New("no commitment host output")
	ErrAlreadyCommitted   = errors.New("skeleton already carries a commitment")
	ErrCommitmentMismatch = errors.New("commitment does not match anchor")
	ErrDuplicateInput     = errors.New("outpoint closed by more than one operation of a contract")
)

// Commitment is the outcome of Commit.
type Commitment struct {
	Txid     chainhash.Hash
	Root     chainhash.Hash
	HostVout uint32
	Anchors  map[model.ContractID]model.Anchor
}

// Commit writes the commitment to bundle into sk and finalizes it.
func Commit(sk *prefab.Skeleton, bundle *prefab.Bundle) (*Commitment, error) {
	if sk.Final() {
		return nil, ErrAlreadyCommitted
	}
	if err := checkMethods(bundle); err != nil {
		return nil, err
	}

	byContract := bundle.ByContract()
	contracts := make([]model.ContractID, 0, len(byContract))
	for c := range byContract {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].Compare(contracts[j]) < 0 })

	inputs, err := contractInputs(bundle)
	if err != nil {
		return nil, err
	}
	bundleOps := make([][]model.OpID, len(contracts))
	leaves := make([]chainhash.Hash, len(contracts))
	for i, c := range contracts {
		ids := make([]model.OpID, 0, len(byContract[c]))
		for _, op := range byContract[c] {
			ids = append(ids, op.ID())
		}
		bundleOps[i] = sortedOps(ids)
		leaves[i] = Leaf(c, BundleIDOf(ids, inputs[c]))
	}
	root, proofs, err := buildTree(contracts, leaves)
	if err != nil {
		return nil, err
	}

	var (
		host        uint32
		internalKey []byte
	)
	tx := sk.Tx()
	switch bundle.Method {
	case model.OpretFirst:
		if firstOutput(tx, isOpReturn) >= 0 {
			return nil, fmt.Errorf("%w: transaction already has an OP_RETURN output", ErrAlreadyCommitted)
		}
		script, err := txscript.NullDataScript(root[:])
		if err != nil {
			return nil, err
		}
		if host, err = sk.AddOutput(wire.NewTxOut(0, script)); err != nil {
			return nil, err
		}
	case model.TapretFirst:
		vout, key, ok := sk.TapretHost()
		if !ok {
			return nil, ErrNoHostOutput
		}
		if first := firstOutput(tx, txscript.IsPayToTaproot); first >= 0 && first < int(vout) {
			return nil, fmt.Errorf("%w: output %d is an earlier taproot output than host %d", ErrNoHostOutput, first, vout)
		}
		script, err := TapretScript(key, root)
		if err != nil {
			return nil, err
		}
		if err := sk.SetOutputScript(vout, script); err != nil {
			return nil, err
		}
		host, internalKey = vout, key
	default:
		return nil, fmt.Errorf("close method %d", bundle.Method)
	}

	sk.Finalize()
	final := sk.Tx()
	c := &Commitment{
		Txid:     final.TxHash(),
		Root:     root,
		HostVout: host,
		Anchors:  make(map[model.ContractID]model.Anchor, len(contracts)),
	}
	for i, contract := range contracts {
		c.Anchors[contract] = model.Anchor{
			ContractID:  contract,
			Txid:        c.Txid,
			Tx:          final,
			Method:      bundle.Method,
			HostVout:    host,
			InternalKey: internalKey,
			BundleOps:   bundleOps[i],
			Inputs:      inputs[contract],
			Proof:       proofs[i],
		}
	}
	return c, nil
}

// Verify checks that tx carries the commitment anchor claims for its bundle.
func Verify(anchor model.Anchor, tx *wire.MsgTx) error {
	if tx == nil {
		return fmt.Errorf("%w: no witness transaction", ErrCommitmentMismatch)
	}
	if tx.TxHash() != anchor.Txid {
		return fmt.Errorf("%w: transaction %s is not %s", ErrCommitmentMismatch, tx.TxHash(), anchor.Txid)
	}
	if len(anchor.BundleOps) == 0 {
		return fmt.Errorf("%w: empty bundle", ErrCommitmentMismatch)
	}
	if err := checkInputs(anchor); err != nil {
		return err
	}
	depth := len(anchor.Proof.Siblings)
	if depth > MaxTreeDepth || anchor.Proof.Position != Slot(anchor.ContractID, depth) {
		return fmt.Errorf("%w: leaf position %d is not the contract slot", ErrCommitmentMismatch, anchor.Proof.Position)
	}
	root := RootOf(Leaf(anchor.ContractID, BundleIDOf(anchor.BundleOps, anchor.Inputs)), anchor.Proof)

	var (
		first int
		want  []byte
		err   error
	)
	switch anchor.Method {
	case model.OpretFirst:
		first = firstOutput(tx, isOpReturn)
		want, err = txscript.NullDataScript(root[:])
	case model.TapretFirst:
		first = firstOutput(tx, txscript.IsPayToTaproot)
		want, err = TapretScript(anchor.InternalKey, root)
	default:
		return fmt.Errorf("%w: close method %d", ErrCommitmentMismatch, anchor.Method)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommitmentMismatch, err)
	}
	if first < 0 || uint32(first) != anchor.HostVout {
		return fmt.Errorf("%w: host output %d is not the first %s candidate", ErrCommitmentMismatch, anchor.HostVout, anchor.Method)
	}
	if !bytes.Equal(tx.TxOut[first].PkScript, want) {
		return fmt.Errorf("%w: output %d script", ErrCommitmentMismatch, first)
	}
	return nil
}

// TapretScript is the P2TR script whose single script leaf is OP_RETURN <root>.
func TapretScript(internalKey []byte, root chainhash.Hash) ([]byte, error) {
	pub, err := schnorr.ParsePubKey(internalKey)
	if err != nil {
		return nil, fmt.Errorf("internal key: %w", err)
	}
	leafScript, err := txscript.NullDataScript(root[:])
	if err != nil {
		return nil, err
	}
	leafHash := txscript.NewBaseTapLeaf(leafScript).TapHash()
	return txscript.PayToTaprootScript(txscript.ComputeTaprootOutputKey(pub, leafHash[:]))
}

func checkMethods(bundle *prefab.Bundle) error {
	if len(bundle.Operations) == 0 {
		return errors.New("empty bundle")
	}
	for _, op := range bundle.Operations {
		for i, a := range op.Assignments {
			if a.Seal.Method != bundle.Method {
				return fmt.Errorf("%w: operation %s assignment %d uses %s, bundle uses %s",
					ErrMixedCloseMethods, op.ID(), i, a.Seal.Method, bundle.Method)
			}
		}
	}
	return nil
}

// contractInputs splits the bundle input map per contract, keeping one closing
// operation per outpoint and contract.
func contractInputs(bundle *prefab.Bundle) (map[model.ContractID][]model.BundleInput, error) {
	owner := make(map[model.OpID]model.ContractID, len(bundle.Operations))
	for _, op := range bundle.Operations {
		owner[op.ID()] = op.Contract()
	}
	out := make(map[model.ContractID][]model.BundleInput)
	for outpoint, ids := range bundle.Inputs {
		closer := map[model.ContractID]model.OpID{}
		for _, id := range ids {
			c, ok := owner[id]
			if !ok {
				return nil, fmt.Errorf("input %s names operation %s outside the bundle", outpoint, id)
			}
			if prev, ok := closer[c]; ok {
				if prev != id {
					return nil, fmt.Errorf("%w: %s by %s and %s", ErrDuplicateInput, outpoint, prev, id)
				}
				continue
			}
			closer[c] = id
			out[c] = append(out[c], model.BundleInput{Outpoint: outpoint, Op: id})
		}
	}
	for c := range out {
		model.SortInputs(out[c])
	}
	return out, nil
}

// checkInputs rejects input maps that give an outpoint more than one closer
// or name operations outside the bundle.
func checkInputs(anchor model.Anchor) error {
	seen := make(map[wire.OutPoint]struct{}, len(anchor.Inputs))
	for _, in := range anchor.Inputs {
		if _, dup := seen[in.Outpoint]; dup {
			return fmt.Errorf("%w: %s closed twice", ErrCommitmentMismatch, in.Outpoint)
		}
		seen[in.Outpoint] = struct{}{}
		if !anchor.Covers(in.Op) {
			return fmt.Errorf("%w: input %s names operation %s outside the bundle", ErrCommitmentMismatch, in.Outpoint, in.Op)
		}
	}
	return nil
}

func isOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

func firstOutput(tx *wire.MsgTx, match func([]byte) bool) int {
	for i, out := range tx.TxOut {
		if match(out.PkScript) {
			return i
		}
	}
	return -1
}
