package prefab

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

var bundleMagic = []byte("STPB")

const bundleVersion uint16 = 1

// Bundle is every operation that one witness transaction will anchor, across contracts.
type Bundle struct {
	Method     model.CloseMethod
	Operations []model.Operation
	// Inputs maps each spent outpoint to the operations closing seals on it.
	Inputs map[wire.OutPoint][]model.OpID
}

// ByContract groups operations by contract, keeping bundle order.
func (b *Bundle) ByContract() map[model.ContractID][]model.Operation {
	out := make(map[model.ContractID][]model.Operation)
	for _, op := range b.Operations {
		out[op.Contract()] = append(out[op.Contract()], op)
	}
	return out
}

// Outputs maps witness output indices to the operations assigning state there.
func (b *Bundle) Outputs() map[uint32][]model.OpID {
	out := make(map[uint32][]model.OpID)
	for _, op := range b.Operations {
		id := op.ID()
		for _, a := range op.Assignments {
			if !a.Seal.Witness {
				continue
			}
			ids := out[a.Seal.Vout]
			if len(ids) == 0 || ids[len(ids)-1] != id {
				out[a.Seal.Vout] = append(ids, id)
			}
		}
	}
	return out
}

// WriteBundle writes the bundle file shared with co-signers. txid is the
// unsigned witness transaction the bundle belongs to.
func WriteBundle(w io.Writer, b *Bundle, txid chainhash.Hash) error {
	e := model.NewEncoder(w)
	e.Fixed(bundleMagic)
	e.U16(bundleVersion)
	e.U8(uint8(b.Method))
	e.Hash(txid)

	e.VarInt(uint64(len(b.Operations)))
	for _, op := range b.Operations {
		raw, err := model.MarshalOperation(op)
		if err != nil {
			return err
		}
		e.Bytes(raw)
	}

	outpoints := make([]wire.OutPoint, 0, len(b.Inputs))
	for op := range b.Inputs {
		outpoints = append(outpoints, op)
	}
	sortOutpoints(outpoints)
	e.VarInt(uint64(len(outpoints)))
	for _, op := range outpoints {
		e.Hash(op.Hash)
		e.U32(op.Index)
		ids := b.Inputs[op]
		e.VarInt(uint64(len(ids)))
		for _, id := range ids {
			e.Fixed(id[:])
		}
	}
	return e.Err()
}

// ReadBundle reads a file written by WriteBundle.
func ReadBundle(r io.Reader) (*Bundle, chainhash.Hash, error) {
	d := model.NewDecoder(r)
	if magic := d.Fixed(len(bundleMagic)); d.Err() == nil && !bytes.Equal(magic, bundleMagic) {
		return nil, chainhash.Hash{}, fmt.Errorf("%w: bundle magic %q", model.ErrMalformed, magic)
	}
	if v := d.U16(); d.Err() == nil && v != bundleVersion {
		return nil, chainhash.Hash{}, fmt.Errorf("%w: bundle version %d", model.ErrMalformed, v)
	}
	b := &Bundle{Method: model.CloseMethod(d.U8()), Inputs: map[wire.OutPoint][]model.OpID{}}
	txid := d.Hash()

	n := d.Count("operations")
	for i := 0; i < n && d.Err() == nil; i++ {
		raw := d.Bytes("operation")
		if d.Err() != nil {
			break
		}
		op, err := model.DecodeOperation(bytes.NewReader(raw))
		if err != nil {
			return nil, chainhash.Hash{}, err
		}
		b.Operations = append(b.Operations, op)
	}

	n = d.Count("inputs")
	for i := 0; i < n && d.Err() == nil; i++ {
		op := wire.OutPoint{Hash: d.Hash(), Index: d.U32()}
		m := d.Count("input ops")
		for j := 0; j < m && d.Err() == nil; j++ {
			var id model.OpID
			copy(id[:], d.Fixed(len(id)))
			b.Inputs[op] = append(b.Inputs[op], id)
		}
	}
	if err := d.Err(); err != nil {
		return nil, chainhash.Hash{}, fmt.Errorf("read bundle: %w", err)
	}
	if !b.Method.Valid() {
		return nil, chainhash.Hash{}, fmt.Errorf("%w: close method %d", model.ErrMalformed, b.Method)
	}
	return b, txid, nil
}

func sortOutpoints(ops []wire.OutPoint) {
	sort.Slice(ops, func(i, j int) bool {
		if c := bytes.Compare(ops[i].Hash[:], ops[j].Hash[:]); c != 0 {
			return c < 0
		}
		return ops[i].Index < ops[j].Index
	})
}
