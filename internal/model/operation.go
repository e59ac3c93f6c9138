package model

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OperationTag domain-separates operation ids from every other tagged hash.
var OperationTag = []byte("urn:sealtransfer:operation#v1")

// OpKind distinguishes genesis from transitions.
type OpKind uint8

const (
	KindGenesis OpKind = iota + 1
	KindTransition
	// KindExtension is reserved; no built-in schema declares extensions.
	KindExtension
)

// Opout addresses one assignment of one operation.
type Opout struct {
	Op   OpID
	Type AssignmentType
	// No is the position in the operation's Assignments.
	No uint16
}

func (o Opout) String() string {
	return fmt.Sprintf("%s/%d/%d", o.Op, o.Type, o.No)
}

// Compare orders by op id, type and position.
func (o Opout) Compare(other Opout) int {
	if c := o.Op.Compare(other.Op); c != 0 {
		return c
	}
	switch {
	case o.Type != other.Type:
		if o.Type < other.Type {
			return -1
		}
		return 1
	case o.No < other.No:
		return -1
	case o.No > other.No:
		return 1
	}
	return 0
}

// GlobalState is one contract-wide value.
type GlobalState struct {
	Type  GlobalType
	Value []byte
}

// Assignment binds state to a seal. Fungible state uses Amount, data state uses Data.
type Assignment struct {
	Type   AssignmentType
	Seal   Seal
	Amount uint64
	Data   []byte
}

// Operation is a genesis or a state transition.
type Operation struct {
	Kind OpKind
	// ContractID is zero for genesis.
	ContractID ContractID
	// Schema and Network are set on genesis only.
	Schema      SchemaID
	Network     Network
	Transition  TransitionType
	Inputs      []Opout
	Globals     []GlobalState
	Assignments []Assignment
	Nonce       uint64
}

// IsGenesis reports whether op opens a contract.
func (op Operation) IsGenesis() bool {
	return op.Kind == KindGenesis
}

// ID hashes the canonical encoding.
func (op Operation) ID() OpID {
	var buf bytes.Buffer
	_ = op.Encode(&buf)
	return OpID(*chainhash.TaggedHash(OperationTag, buf.Bytes()))
}

// Contract returns the contract the operation belongs to.
func (op Operation) Contract() ContractID {
	if op.IsGenesis() {
		return ContractID(op.ID())
	}
	return op.ContractID
}

// Opout returns the address of assignment n.
func (op Operation) Opout(n int) Opout {
	return Opout{Op: op.ID(), Type: op.Assignments[n].Type, No: uint16(n)}
}

// Assignment resolves an opout against op, checking type and position.
func (op Operation) Assignment(o Opout) (Assignment, bool) {
	if int(o.No) >= len(op.Assignments) {
		return Assignment{}, false
	}
	a := op.Assignments[o.No]
	if a.Type != o.Type {
		return Assignment{}, false
	}
	return a, true
}

// Global returns every value of global type t in declaration order.
func (op Operation) Global(t GlobalType) [][]byte {
	var out [][]byte
	for _, g := range op.Globals {
		if g.Type == t {
			out = append(out, g.Value)
		}
	}
	return out
}

// Encode writes the canonical form hashed by ID.
func (op Operation) Encode(w io.Writer) error {
	e := NewEncoder(w)
	e.U8(uint8(op.Kind))
	e.Fixed(op.ContractID[:])
	e.String(string(op.Schema))
	e.String(string(op.Network))
	e.U16(uint16(op.Transition))

	e.VarInt(uint64(len(op.Inputs)))
	for _, in := range op.Inputs {
		e.Fixed(in.Op[:])
		e.U16(uint16(in.Type))
		e.U16(in.No)
	}

	e.VarInt(uint64(len(op.Globals)))
	for _, g := range op.Globals {
		e.U16(uint16(g.Type))
		e.Bytes(g.Value)
	}

	e.VarInt(uint64(len(op.Assignments)))
	for _, a := range op.Assignments {
		e.U16(uint16(a.Type))
		a.Seal.encode(e)
		e.U64(a.Amount)
		e.Bytes(a.Data)
	}

	e.U64(op.Nonce)
	return e.Err()
}

// DecodeOperation reads the form written by Encode.
func DecodeOperation(r io.Reader) (Operation, error) {
	d := NewDecoder(r)
	op := decodeOperation(d)
	if err := d.Err(); err != nil {
		return Operation{}, fmt.Errorf("decode operation: %w", err)
	}
	return op, nil
}

// MarshalOperation is Encode into a fresh slice.
func MarshalOperation(op Operation) ([]byte, error) {
	var buf bytes.Buffer
	if err := op.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeOperation(d *Decoder) Operation {
	var op Operation
	op.Kind = OpKind(d.U8())
	copy(op.ContractID[:], d.Fixed(len(op.ContractID)))
	op.Schema = SchemaID(d.String("schema"))
	op.Network = Network(d.String("network"))
	op.Transition = TransitionType(d.U16())

	if n := d.Count("inputs"); n > 0 {
		op.Inputs = make([]Opout, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			var in Opout
			copy(in.Op[:], d.Fixed(len(in.Op)))
			in.Type = AssignmentType(d.U16())
			in.No = d.U16()
			op.Inputs = append(op.Inputs, in)
		}
	}
	if n := d.Count("globals"); n > 0 {
		op.Globals = make([]GlobalState, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			t := GlobalType(d.U16())
			op.Globals = append(op.Globals, GlobalState{Type: t, Value: d.Bytes("global")})
		}
	}
	if n := d.Count("assignments"); n > 0 {
		op.Assignments = make([]Assignment, 0, n)
		for i := 0; i < n && d.Err() == nil; i++ {
			a := Assignment{Type: AssignmentType(d.U16())}
			a.Seal = decodeSeal(d)
			a.Amount = d.U64()
			a.Data = d.Bytes("data")
			op.Assignments = append(op.Assignments, a)
		}
	}
	op.Nonce = d.U64()

	if d.Err() == nil {
		switch op.Kind {
		case KindGenesis:
			if !op.ContractID.IsZero() || len(op.Inputs) > 0 {
				d.fail(fmt.Errorf("%w: genesis with contract id or inputs", ErrMalformed))
			}
		case KindTransition, KindExtension:
			if op.ContractID.IsZero() {
				d.fail(fmt.Errorf("%w: transition without contract id", ErrMalformed))
			}
		default:
			d.fail(fmt.Errorf("%w: operation kind %d", ErrMalformed, op.Kind))
		}
	}
	return op
}
