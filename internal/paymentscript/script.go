// Package paymentscript turns invoices into a payment script: the per-contract
// operations a payer has to construct, with their beneficiaries.
package paymentscript

import (
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
)

// Payment is one beneficiary assignment inside an entry.
type Payment struct {
	// Invoice is the index of the originating invoice, or -1 for hand-authored payments.
	Invoice     int
	Assignment  model.AssignmentType
	Kind        schema.StateKind
	Beneficiary invoice.Beneficiary
	Amount      uint64
	Data        []byte
}

// Entry is one operation to build for one contract.
type Entry struct {
	ContractID model.ContractID
	Schema     model.SchemaID
	Transition model.TransitionType
	Payments   []Payment
}

// Script is an ordered list of entries, one per contract and transition type.
type Script struct {
	Entries []Entry
}

type entryKey struct {
	contract   model.ContractID
	transition model.TransitionType
}

// Merge returns a script holding the entries of s and other, with entries for
// the same contract and transition folded together. Order of first appearance is kept.
func (s Script) Merge(other Script) Script {
	var out Script
	index := map[entryKey]int{}
	for _, e := range append(append([]Entry(nil), s.Entries...), other.Entries...) {
		key := entryKey{contract: e.ContractID, transition: e.Transition}
		if i, ok := index[key]; ok {
			out.Entries[i].Payments = append(out.Entries[i].Payments, e.Payments...)
			continue
		}
		index[key] = len(out.Entries)
		e.Payments = append([]Payment(nil), e.Payments...)
		out.Entries = append(out.Entries, e)
	}
	return out
}

// Contracts lists the distinct contracts the script touches.
func (s Script) Contracts() []model.ContractID {
	seen := map[model.ContractID]struct{}{}
	var out []model.ContractID
	for _, e := range s.Entries {
		if _, ok := seen[e.ContractID]; ok {
			continue
		}
		seen[e.ContractID] = struct{}{}
		out = append(out, e.ContractID)
	}
	return out
}
