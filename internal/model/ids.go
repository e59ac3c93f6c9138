// Package model defines contract operations, seals, anchors and their canonical encoding.
package model

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	contractIDVersion byte = 0x1c
	terminalVersion   byte = 0x1e
)

// ErrChecksumMismatch is returned when a base58check identifier fails its digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// OpID is the tagged hash of an operation's canonical encoding.
type OpID [chainhash.HashSize]byte

// String returns lower-case hex.
func (id OpID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is unset.
func (id OpID) IsZero() bool {
	return id == OpID{}
}

// Compare orders ids bytewise.
func (id OpID) Compare(other OpID) int {
	return bytes.Compare(id[:], other[:])
}

// ParseOpID decodes the hex form produced by String.
func ParseOpID(s string) (OpID, error) {
	var id OpID
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("%w: operation id %q", ErrMalformed, s)
	}
	copy(id[:], raw)
	return id, nil
}

// ContractID is the OpID of a contract's genesis.
type ContractID [chainhash.HashSize]byte

// String returns the base58check form used in invoices and logs.
func (id ContractID) String() string {
	return base58.CheckEncode(id[:], contractIDVersion)
}

func (id ContractID) IsZero() bool {
	return id == ContractID{}
}

func (id ContractID) Compare(other ContractID) int {
	return bytes.Compare(id[:], other[:])
}

// ParseContractID decodes the base58check form. A bad checksum yields base58.ErrChecksum.
func ParseContractID(s string) (ContractID, error) {
	var id ContractID
	raw, version, err := checkDecode(s)
	if err != nil {
		return id, fmt.Errorf("contract id %q: %w", s, err)
	}
	if version != contractIDVersion || len(raw) != len(id) {
		return id, fmt.Errorf("%w: contract id %q", ErrMalformed, s)
	}
	copy(id[:], raw)
	return id, nil
}

// BundleID identifies the set of operations of one contract committed in one witness transaction.
type BundleID [chainhash.HashSize]byte

func (id BundleID) String() string {
	return hex.EncodeToString(id[:])
}

// SchemaID names a registered schema.
type SchemaID string

// AssignmentType selects an owned-state slot declared by a schema.
type AssignmentType uint16

// GlobalType selects a global-state slot declared by a schema.
type GlobalType uint16

// TransitionType selects a transition declared by a schema.
type TransitionType uint16

// BlankTransition moves state unchanged; every schema accepts it.
const BlankTransition TransitionType = 0xffff

func checkDecode(s string) ([]byte, byte, error) {
	raw, version, err := base58.CheckDecode(s)
	switch {
	case errors.Is(err, base58.ErrChecksum):
		return nil, 0, ErrChecksumMismatch
	case err != nil:
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, version, nil
}
