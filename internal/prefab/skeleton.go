// Package prefab holds the unsigned witness transaction skeleton and the
// prefabricated operation bundle produced by the executor.
package prefab

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

var (
	// ErrCommitmentInvalidated is returned by structural edits after the commitment was embedded.
	ErrCommitmentInvalidated = errors.New("skeleton is commitment-final")
	ErrNoSuchOutput          = errors.New("no such output")
)

const proprietaryType = 0xfc

var proprietaryPrefix = []byte("SEAL")

// Proprietary PSBT subtypes.
const (
	subtypeOperation byte = 0x01
	subtypeConsumes  byte = 0x02
	subtypeFinal     byte = 0x03
)

// Skeleton is an unsigned witness transaction wrapped in a PSBT.
type Skeleton struct {
	packet *psbt.Packet
}

// NewSkeleton wraps tx, which must carry no signatures.
func NewSkeleton(tx *wire.MsgTx) (*Skeleton, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("new psbt: %w", err)
	}
	return &Skeleton{packet: packet}, nil
}

// ParseSkeleton reads a serialized PSBT.
func ParseSkeleton(r io.Reader) (*Skeleton, error) {
	packet, err := psbt.NewFromRawBytes(r, false)
	if err != nil {
		return nil, fmt.Errorf("parse psbt: %w", err)
	}
	return &Skeleton{packet: packet}, nil
}

// Serialize writes the binary PSBT.
func (s *Skeleton) Serialize(w io.Writer) error {
	return s.packet.Serialize(w)
}

// Packet exposes the PSBT for signers.
func (s *Skeleton) Packet() *psbt.Packet {
	return s.packet
}

// Tx returns a copy of the unsigned transaction.
func (s *Skeleton) Tx() *wire.MsgTx {
	return s.packet.UnsignedTx.Copy()
}

// Txid is the id of the unsigned transaction; segwit signing does not change it.
func (s *Skeleton) Txid() chainhash.Hash {
	return s.packet.UnsignedTx.TxHash()
}

// Final reports whether a commitment has been embedded.
func (s *Skeleton) Final() bool {
	_, ok := s.findGlobal(subtypeFinal, nil)
	return ok
}

// Finalize freezes the input and output sets.
func (s *Skeleton) Finalize() {
	if s.Final() {
		return
	}
	s.packet.Unknowns = append(s.packet.Unknowns, &psbt.Unknown{
		Key:   proprietaryKey(subtypeFinal, nil),
		Value: []byte{1},
	})
}

// AddInput appends an input spending op.
func (s *Skeleton) AddInput(op wire.OutPoint) error {
	if s.Final() {
		return ErrCommitmentInvalidated
	}
	s.packet.UnsignedTx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	s.packet.Inputs = append(s.packet.Inputs, psbt.PInput{})
	return nil
}

// AddOutput appends out and returns its index.
func (s *Skeleton) AddOutput(out *wire.TxOut) (uint32, error) {
	if s.Final() {
		return 0, ErrCommitmentInvalidated
	}
	s.packet.UnsignedTx.AddTxOut(out)
	s.packet.Outputs = append(s.packet.Outputs, psbt.POutput{})
	return uint32(len(s.packet.UnsignedTx.TxOut) - 1), nil
}

// RemoveOutput deletes output vout, shifting later outputs down.
func (s *Skeleton) RemoveOutput(vout uint32) error {
	if s.Final() {
		return ErrCommitmentInvalidated
	}
	if err := s.checkOutput(vout); err != nil {
		return err
	}
	tx := s.packet.UnsignedTx
	tx.TxOut = append(tx.TxOut[:vout], tx.TxOut[vout+1:]...)
	s.packet.Outputs = append(s.packet.Outputs[:vout], s.packet.Outputs[vout+1:]...)
	return nil
}

// SwapOutputs exchanges outputs i and j.
func (s *Skeleton) SwapOutputs(i, j uint32) error {
	if s.Final() {
		return ErrCommitmentInvalidated
	}
	if err := s.checkOutput(i); err != nil {
		return err
	}
	if err := s.checkOutput(j); err != nil {
		return err
	}
	tx := s.packet.UnsignedTx
	tx.TxOut[i], tx.TxOut[j] = tx.TxOut[j], tx.TxOut[i]
	s.packet.Outputs[i], s.packet.Outputs[j] = s.packet.Outputs[j], s.packet.Outputs[i]
	return nil
}

// SetOutputScript replaces the script of output vout.
func (s *Skeleton) SetOutputScript(vout uint32, pkScript []byte) error {
	if s.Final() {
		return ErrCommitmentInvalidated
	}
	if err := s.checkOutput(vout); err != nil {
		return err
	}
	s.packet.UnsignedTx.TxOut[vout].PkScript = pkScript
	return nil
}

// MarkTapretHost records the x-only internal key of the output that will carry a tapret commitment.
func (s *Skeleton) MarkTapretHost(vout uint32, internalKey []byte) error {
	if s.Final() {
		return ErrCommitmentInvalidated
	}
	if err := s.checkOutput(vout); err != nil {
		return err
	}
	s.packet.Outputs[vout].TaprootInternalKey = append([]byte(nil), internalKey...)
	return nil
}

// TapretHost returns the first output flagged by MarkTapretHost.
func (s *Skeleton) TapretHost() (uint32, []byte, bool) {
	for i, out := range s.packet.Outputs {
		if len(out.TaprootInternalKey) > 0 {
			return uint32(i), out.TaprootInternalKey, true
		}
	}
	return 0, nil, false
}

// AddOperation stores op in the global map so co-signers can inspect it.
func (s *Skeleton) AddOperation(op model.Operation) error {
	raw, err := model.MarshalOperation(op)
	if err != nil {
		return err
	}
	id := op.ID()
	if _, ok := s.findGlobal(subtypeOperation, id[:]); ok {
		return nil
	}
	s.packet.Unknowns = append(s.packet.Unknowns, &psbt.Unknown{
		Key:   proprietaryKey(subtypeOperation, id[:]),
		Value: raw,
	})
	return nil
}

// Operations decodes every operation stored by AddOperation.
func (s *Skeleton) Operations() ([]model.Operation, error) {
	var ops []model.Operation
	for _, u := range s.packet.Unknowns {
		if subtype, _, ok := parseProprietaryKey(u.Key); !ok || subtype != subtypeOperation {
			continue
		}
		op, err := model.DecodeOperation(bytes.NewReader(u.Value))
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// MarkConsumed records that input idx closes a seal of operation id's parent for contract.
func (s *Skeleton) MarkConsumed(idx int, contract model.ContractID, id model.OpID) error {
	if idx < 0 || idx >= len(s.packet.Inputs) {
		return fmt.Errorf("input %d out of range", idx)
	}
	in := &s.packet.Inputs[idx]
	in.Unknowns = append(in.Unknowns, &psbt.Unknown{
		Key:   proprietaryKey(subtypeConsumes, contract[:]),
		Value: append([]byte(nil), id[:]...),
	})
	return nil
}

// Consumed lists the operation ids recorded on input idx.
func (s *Skeleton) Consumed(idx int) []model.OpID {
	if idx < 0 || idx >= len(s.packet.Inputs) {
		return nil
	}
	var ids []model.OpID
	for _, u := range s.packet.Inputs[idx].Unknowns {
		if subtype, _, ok := parseProprietaryKey(u.Key); ok && subtype == subtypeConsumes && len(u.Value) == len(model.OpID{}) {
			var id model.OpID
			copy(id[:], u.Value)
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Skeleton) checkOutput(vout uint32) error {
	if int(vout) >= len(s.packet.UnsignedTx.TxOut) {
		return fmt.Errorf("%w: %d", ErrNoSuchOutput, vout)
	}
	return nil
}

func (s *Skeleton) findGlobal(subtype byte, keyData []byte) (*psbt.Unknown, bool) {
	for _, u := range s.packet.Unknowns {
		st, data, ok := parseProprietaryKey(u.Key)
		if ok && st == subtype && bytes.Equal(data, keyData) {
			return u, true
		}
	}
	return nil, false
}

func proprietaryKey(subtype byte, keyData []byte) []byte {
	key := make([]byte, 0, 3+len(proprietaryPrefix)+len(keyData))
	key = append(key, proprietaryType, byte(len(proprietaryPrefix)))
	key = append(key, proprietaryPrefix...)
	key = append(key, subtype)
	return append(key, keyData...)
}

func parseProprietaryKey(key []byte) (byte, []byte, bool) {
	head := 2 + len(proprietaryPrefix)
	if len(key) < head+1 || key[0] != proprietaryType || int(key[1]) != len(proprietaryPrefix) {
		return 0, nil, false
	}
	if !bytes.Equal(key[2:head], proprietaryPrefix) {
		return 0, nil, false
	}
	data := key[head+1:]
	if len(data) == 0 {
		data = nil
	}
	return key[head], data, true
}
