package model

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Allocation is an unspent assignment resolved to a concrete outpoint.
type Allocation struct {
	ContractID ContractID
	Opout      Opout
	Seal       Seal
	Outpoint   wire.OutPoint
	Amount     uint64
	Data       []byte
	// Order is the store sequence at which the allocation appeared.
	Order uint64
}

// Terminal is an opout a consignment is built for, in its transferable text form.
type Terminal Opout

// Opout converts back to the plain address.
func (t Terminal) Opout() Opout {
	return Opout(t)
}

// String returns a base58check encoding that detects transcription errors.
func (t Terminal) String() string {
	buf := make([]byte, 0, chainhash.HashSize+4)
	buf = append(buf, t.Op[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.Type))
	buf = binary.BigEndian.AppendUint16(buf, t.No)
	return base58.CheckEncode(buf, terminalVersion)
}

// ParseTerminal decodes String output.
func ParseTerminal(s string) (Terminal, error) {
	raw, version, err := checkDecode(s)
	if err != nil {
		return Terminal{}, fmt.Errorf("terminal %q: %w", s, err)
	}
	if version != terminalVersion || len(raw) != chainhash.HashSize+4 {
		return Terminal{}, fmt.Errorf("%w: terminal %q", ErrMalformed, s)
	}
	var t Terminal
	copy(t.Op[:], raw[:chainhash.HashSize])
	t.Type = AssignmentType(binary.BigEndian.Uint16(raw[chainhash.HashSize:]))
	t.No = binary.BigEndian.Uint16(raw[chainhash.HashSize+2:])
	return t, nil
}

// Closure is a set of operations plus the anchors of their witness transactions.
type Closure struct {
	ContractID ContractID
	Operations []Operation
	Anchors    []Anchor
}

// AnchorFor returns the anchor covering id.
func (c Closure) AnchorFor(id OpID) (Anchor, bool) {
	for _, a := range c.Anchors {
		if a.Covers(id) {
			return a, true
		}
	}
	return Anchor{}, false
}

// WarningKind classifies non-fatal findings.
type WarningKind string

const (
	WarnUnminedWitness      WarningKind = "unmined_witness"
	WarnUnminedTerminal     WarningKind = "unmined_terminal"
	WarnReorg               WarningKind = "reorg"
	WarnShallowConfirmation WarningKind = "shallow_confirmation"
)

// Warning is a non-fatal finding attached to a witness transaction.
type Warning struct {
	Kind    WarningKind
	Txid    chainhash.Hash
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Txid, w.Message)
}
