package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// CloseMethod is the way a witness transaction commits to what closed a seal.
type CloseMethod uint8

const (
	// OpretFirst commits in the first OP_RETURN output.
	OpretFirst CloseMethod = iota + 1
	// TapretFirst tweaks the first taproot output key.
	TapretFirst
)

// ErrUnresolvableSeal is returned when a witness seal is resolved without a witness transaction.
var ErrUnresolvableSeal = errors.New("witness seal without witness transaction")

func (m CloseMethod) String() string {
	switch m {
	case OpretFirst:
		return "opret1st"
	case TapretFirst:
		return "tapret1st"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseCloseMethod accepts the names returned by String.
func ParseCloseMethod(s string) (CloseMethod, error) {
	switch strings.ToLower(s) {
	case "opret1st", "opret":
		return OpretFirst, nil
	case "tapret1st", "tapret":
		return TapretFirst, nil
	default:
		return 0, fmt.Errorf("unknown close method %q", s)
	}
}

func (m CloseMethod) Valid() bool {
	return m == OpretFirst || m == TapretFirst
}

// Seal is a single-use seal definition. A witness seal names an output of the
// transaction that will carry the assigning operation; its txid is only known
// once that transaction exists.
type Seal struct {
	Method   CloseMethod
	Witness  bool
	Txid     chainhash.Hash
	Vout     uint32
	Blinding uint64
}

// OutpointSeal builds a seal over an existing output.
func OutpointSeal(method CloseMethod, op wire.OutPoint, blinding uint64) Seal {
	return Seal{Method: method, Txid: op.Hash, Vout: op.Index, Blinding: blinding}
}

// WitnessSeal builds a seal over output vout of the future witness transaction.
func WitnessSeal(method CloseMethod, vout uint32, blinding uint64) Seal {
	return Seal{Method: method, Witness: true, Vout: vout, Blinding: blinding}
}

// Resolve returns the outpoint that closes the seal. witness is the txid of the
// transaction carrying the assigning operation; it is ignored for outpoint seals.
func (s Seal) Resolve(witness *chainhash.Hash) (wire.OutPoint, error) {
	if !s.Witness {
		return wire.OutPoint{Hash: s.Txid, Index: s.Vout}, nil
	}
	if witness == nil {
		return wire.OutPoint{}, ErrUnresolvableSeal
	}
	return wire.OutPoint{Hash: *witness, Index: s.Vout}, nil
}

func (s Seal) String() string {
	if s.Witness {
		return fmt.Sprintf("%s:~:%d", s.Method, s.Vout)
	}
	return fmt.Sprintf("%s:%s:%d", s.Method, s.Txid, s.Vout)
}

func (s Seal) encode(e *Encoder) {
	e.U8(uint8(s.Method))
	e.Bool(s.Witness)
	e.Hash(s.Txid)
	e.U32(s.Vout)
	e.U64(s.Blinding)
}

func decodeSeal(d *Decoder) Seal {
	s := Seal{
		Method:  CloseMethod(d.U8()),
		Witness: d.Bool(),
		Txid:    d.Hash(),
		Vout:    d.U32(),
	}
	s.Blinding = d.U64()
	if d.Err() == nil && !s.Method.Valid() {
		d.fail(fmt.Errorf("%w: close method %d", ErrMalformed, s.Method))
	}
	if d.Err() == nil && s.Witness && s.Txid != (chainhash.Hash{}) {
		d.fail(fmt.Errorf("%w: witness seal carries a txid", ErrMalformed))
	}
	return s
}

// BlindingTag domain-separates derived seal blinding factors.
var BlindingTag = []byte("urn:sealtransfer:blinding#v1")

// DeriveBlinding returns a deterministic blinding factor bound to parts.
func DeriveBlinding(parts ...[]byte) uint64 {
	h := chainhash.TaggedHash(BlindingTag, parts...)
	var v uint64
	for _, b := range h[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

// ParseSeal reads the form produced by Seal.String; the blinding is left zero.
func ParseSeal(s string) (Seal, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Seal{}, fmt.Errorf("%w: seal %q", ErrMalformed, s)
	}
	method, err := ParseCloseMethod(parts[0])
	if err != nil {
		return Seal{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	vout, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return Seal{}, fmt.Errorf("%w: seal vout %q", ErrMalformed, parts[2])
	}
	if parts[1] == "~" {
		return WitnessSeal(method, uint32(vout), 0), nil
	}
	txid, err := chainhash.NewHashFromStr(parts[1])
	if err != nil {
		return Seal{}, fmt.Errorf("%w: seal txid %q", ErrMalformed, parts[1])
	}
	return OutpointSeal(method, wire.OutPoint{Hash: *txid, Index: uint32(vout)}, 0), nil
}
