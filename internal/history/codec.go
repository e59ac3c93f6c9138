package history

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

const (
	idSize       = chainhash.HashSize
	outpointSize = chainhash.HashSize + 4
	opoutSize    = chainhash.HashSize + 4
)

// closingKey is contract || txid || vout. It also prefixes assignment keys.
func closingKey(contract model.ContractID, outpoint wire.OutPoint) []byte {
	key := make([]byte, 0, idSize+outpointSize)
	key = append(key, contract[:]...)
	key = append(key, outpoint.Hash[:]...)
	return binary.BigEndian.AppendUint32(key, outpoint.Index)
}

func assignmentKey(contract model.ContractID, outpoint wire.OutPoint, opout model.Opout) []byte {
	key := closingKey(contract, outpoint)
	key = append(key, opout.Op[:]...)
	key = binary.BigEndian.AppendUint16(key, uint16(opout.Type))
	return binary.BigEndian.AppendUint16(key, opout.No)
}

func anchorKey(contract model.ContractID, txid chainhash.Hash) []byte {
	key := make([]byte, 0, 2*idSize)
	key = append(key, contract[:]...)
	return append(key, txid[:]...)
}

func hasPrefix(k, prefix []byte) bool {
	return bytes.HasPrefix(k, prefix)
}

func encodeContract(c Contract) ([]byte, error) {
	var buf bytes.Buffer
	e := model.NewEncoder(&buf)
	e.String(string(c.Schema))
	e.String(string(c.Network))
	return buf.Bytes(), e.Err()
}

func decodeContract(k, v []byte) (Contract, error) {
	if len(k) != idSize {
		return Contract{}, fmt.Errorf("%w: contract key of %d bytes", model.ErrMalformed, len(k))
	}
	d := model.NewDecoder(bytes.NewReader(v))
	c := Contract{
		Schema:  model.SchemaID(d.String("schema")),
		Network: model.Network(d.String("network")),
	}
	copy(c.ID[:], k)
	if err := d.Err(); err != nil {
		return Contract{}, fmt.Errorf("decode contract: %w", err)
	}
	return c, nil
}

func encodeAssignment(a model.Assignment, seq uint64) []byte {
	var buf bytes.Buffer
	e := model.NewEncoder(&buf)
	e.U8(uint8(a.Seal.Method))
	e.Bool(a.Seal.Witness)
	e.Hash(a.Seal.Txid)
	e.U32(a.Seal.Vout)
	e.U64(a.Seal.Blinding)
	e.U64(a.Amount)
	e.Bytes(a.Data)
	e.U64(seq)
	return buf.Bytes()
}

func decodeAllocation(k, v []byte) (model.Allocation, error) {
	if len(k) != idSize+outpointSize+opoutSize {
		return model.Allocation{}, fmt.Errorf("%w: assignment key of %d bytes", model.ErrMalformed, len(k))
	}
	var alloc model.Allocation
	copy(alloc.ContractID[:], k[:idSize])
	copy(alloc.Outpoint.Hash[:], k[idSize:idSize+chainhash.HashSize])
	alloc.Outpoint.Index = binary.BigEndian.Uint32(k[idSize+chainhash.HashSize:])
	rest := k[idSize+outpointSize:]
	copy(alloc.Opout.Op[:], rest[:idSize])
	alloc.Opout.Type = model.AssignmentType(binary.BigEndian.Uint16(rest[idSize:]))
	alloc.Opout.No = binary.BigEndian.Uint16(rest[idSize+2:])

	d := model.NewDecoder(bytes.NewReader(v))
	alloc.Seal = model.Seal{
		Method:   model.CloseMethod(d.U8()),
		Witness:  d.Bool(),
		Txid:     d.Hash(),
		Vout:     d.U32(),
		Blinding: d.U64(),
	}
	alloc.Amount = d.U64()
	if data := d.Bytes("data"); len(data) > 0 {
		alloc.Data = data
	}
	alloc.Order = d.U64()
	if err := d.Err(); err != nil {
		return model.Allocation{}, fmt.Errorf("decode assignment: %w", err)
	}
	return alloc, nil
}

func decodeOperation(raw []byte) (model.Operation, error) {
	return model.DecodeOperation(bytes.NewReader(raw))
}

func decodeAnchor(raw []byte) (model.Anchor, error) {
	return model.DecodeAnchor(bytes.NewReader(raw))
}
