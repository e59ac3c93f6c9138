package model

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// WitnessStatus is the last known chain position of a witness transaction.
type WitnessStatus struct {
	Mined  bool
	Height uint32
}

func (s WitnessStatus) String() string {
	if !s.Mined {
		return "unmined"
	}
	return fmt.Sprintf("mined@%d", s.Height)
}

// MerkleProof links a contract leaf to the commitment root.
type MerkleProof struct {
	// Position of the leaf in the sorted leaf list.
	Position uint32
	Siblings []chainhash.Hash
}

// BundleInput records that Op is the one operation of a contract bundle
// closing seals on Outpoint.
type BundleInput struct {
	Outpoint wire.OutPoint
	Op       OpID
}

// SortInputs orders inputs by outpoint, then by operation id.
func SortInputs(inputs []BundleInput) {
	sort.Slice(inputs, func(i, j int) bool {
		a, b := inputs[i].Outpoint, inputs[j].Outpoint
		if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
			return c < 0
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return inputs[i].Op.Compare(inputs[j].Op) < 0
	})
}

// Anchor ties the operations of one contract in one witness transaction to
// that transaction's commitment output.
type Anchor struct {
	ContractID ContractID
	Txid       chainhash.Hash
	// Tx may be nil when the transaction is to be fetched from the chain.
	Tx       *wire.MsgTx
	Method   CloseMethod
	HostVout uint32
	// InternalKey is the x-only taproot internal key for TapretFirst.
	InternalKey []byte
	// BundleOps lists every operation id of the contract bundle, sorted.
	BundleOps []OpID
	// Inputs maps every outpoint the bundle spends to its closing operation,
	// sorted by outpoint.
	Inputs []BundleInput
	Proof  MerkleProof
	Status WitnessStatus
}

// Covers reports whether id is part of the anchored bundle.
func (a Anchor) Covers(id OpID) bool {
	for _, op := range a.BundleOps {
		if op == id {
			return true
		}
	}
	return false
}

// Closer returns the operation the bundle commits as closing seals on outpoint.
func (a Anchor) Closer(outpoint wire.OutPoint) (OpID, bool) {
	for _, in := range a.Inputs {
		if in.Outpoint == outpoint {
			return in.Op, true
		}
	}
	return OpID{}, false
}

// Encode writes the canonical form.
func (a Anchor) Encode(w io.Writer) error {
	e := NewEncoder(w)
	e.Fixed(a.ContractID[:])
	e.Hash(a.Txid)
	e.Tx(a.Tx)
	e.U8(uint8(a.Method))
	e.U32(a.HostVout)
	e.Bytes(a.InternalKey)
	e.VarInt(uint64(len(a.BundleOps)))
	for _, id := range a.BundleOps {
		e.Fixed(id[:])
	}
	e.VarInt(uint64(len(a.Inputs)))
	for _, in := range a.Inputs {
		e.Hash(in.Outpoint.Hash)
		e.U32(in.Outpoint.Index)
		e.Fixed(in.Op[:])
	}
	e.U32(a.Proof.Position)
	e.VarInt(uint64(len(a.Proof.Siblings)))
	for _, h := range a.Proof.Siblings {
		e.Hash(h)
	}
	e.Bool(a.Status.Mined)
	e.U32(a.Status.Height)
	return e.Err()
}

// MarshalAnchor is Encode into a fresh slice.
func MarshalAnchor(a Anchor) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAnchor reads the form written by Encode.
func DecodeAnchor(r io.Reader) (Anchor, error) {
	d := NewDecoder(r)
	var a Anchor
	copy(a.ContractID[:], d.Fixed(len(a.ContractID)))
	a.Txid = d.Hash()
	a.Tx = d.Tx()
	a.Method = CloseMethod(d.U8())
	a.HostVout = d.U32()
	a.InternalKey = d.Bytes("internal key")
	if n := d.Count("bundle ops"); n > 0 {
		a.BundleOps = make([]OpID, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			var id OpID
			copy(id[:], d.Fixed(len(id)))
			a.BundleOps = append(a.BundleOps, id)
		}
	}
	if n := d.Count("bundle inputs"); n > 0 {
		a.Inputs = make([]BundleInput, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			in := BundleInput{Outpoint: wire.OutPoint{Hash: d.Hash(), Index: d.U32()}}
			copy(in.Op[:], d.Fixed(len(in.Op)))
			a.Inputs = append(a.Inputs, in)
		}
	}
	a.Proof.Position = d.U32()
	if n := d.Count("proof"); n > 0 {
		a.Proof.Siblings = make([]chainhash.Hash, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			a.Proof.Siblings = append(a.Proof.Siblings, d.Hash())
		}
	}
	a.Status.Mined = d.Bool()
	a.Status.Height = d.U32()

	if err := d.Err(); err != nil {
		return Anchor{}, fmt.Errorf("decode anchor: %w", err)
	}
	if !a.Method.Valid() {
		return Anchor{}, fmt.Errorf("decode anchor: %w: close method %d", ErrMalformed, a.Method)
	}
	if a.Tx != nil && a.Tx.TxHash() != a.Txid {
		return Anchor{}, fmt.Errorf("decode anchor: %w: transaction does not hash to %s", ErrMalformed, a.Txid)
	}
	return a, nil
}
