// Package history is the local append-only store of contract operations,
// their anchors and the seals they closed.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketContracts   = []byte("contracts")
	bucketOperations  = []byte("operations")
	bucketOpWitness   = []byte("op_witness")
	bucketAnchors     = []byte("anchors")
	bucketClosings    = []byte("seal_closings")
	bucketAssignments = []byte("assignments")
	bucketPending     = []byte("pending_anchors")
)

var (
	// ErrSealConflict means a seal in the closure is already closed by a different operation.
	ErrSealConflict  = errors.New("seal already closed by another operation")
	ErrNotFound      = errors.New("not found")
	ErrUnknownParent = errors.New("operation input refers to an unknown operation")
	ErrNoAnchor      = errors.New("transition without anchor")
)

// Metrics receives store observations.
type Metrics interface {
	Observe(operation string, err error, started time.Time)
	ObserveAppend(operations int)
	ObserveSealConflict()
}

// Contract is a contract known to the store.
type Contract struct {
	ID      model.ContractID
	Schema  model.SchemaID
	Network model.Network
}

// Store is a bbolt-backed history store. It is safe for concurrent use.
type Store struct {
	db      *bolt.DB
	logger  *zap.Logger
	metrics Metrics
}

// Open opens or creates the store at path.
func Open(path string, logger *zap.Logger, metrics Metrics) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketContracts, bucketOperations, bucketOpWitness, bucketAnchors, bucketClosings, bucketAssignments, bucketPending} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, logger: logger.Named("history"), metrics: metrics}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores the operations and anchors of closure that are not yet known.
// Nothing is written when any of them closes a seal already closed by another operation.
func (s *Store) Append(closure model.Closure) error {
	return s.AppendAll(closure)
}

// AppendAll stores every closure in one transaction. A failure in any of
// them leaves the store untouched.
func (s *Store) AppendAll(closures ...model.Closure) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("append", err, started) }()

	written := make([]int, len(closures))
	err = s.db.Update(func(tx *bolt.Tx) error {
		for i, closure := range closures {
			a := appender{tx: tx, closure: closure}
			for _, op := range closure.Operations {
				ok, err := a.append(op)
				if err != nil {
					return fmt.Errorf("contract %s: %w", closure.ContractID, err)
				}
				if ok {
					written[i]++
				}
			}
			for _, anchor := range closure.Anchors {
				if err := a.putAnchor(anchor); err != nil {
					return fmt.Errorf("contract %s: %w", closure.ContractID, err)
				}
			}
		}
		return nil
	})
	if errors.Is(err, ErrSealConflict) {
		s.metrics.ObserveSealConflict()
	}
	if err != nil {
		return err
	}
	for i, closure := range closures {
		s.metrics.ObserveAppend(written[i])
		s.logger.Debug("closure appended",
			zap.Stringer("contract", closure.ContractID),
			zap.Int("operations", written[i]),
			zap.Int("anchors", len(closure.Anchors)),
		)
	}
	return nil
}

type appender struct {
	tx      *bolt.Tx
	closure model.Closure
}

func (a appender) append(op model.Operation) (bool, error) {
	id := op.ID()
	ops := a.tx.Bucket(bucketOperations)
	if ops.Get(id[:]) != nil {
		return false, nil
	}
	contract := op.Contract()

	var witness *chainhash.Hash
	if op.IsGenesis() {
		rec, err := encodeContract(Contract{ID: contract, Schema: op.Schema, Network: op.Network})
		if err != nil {
			return false, err
		}
		if err := a.tx.Bucket(bucketContracts).Put(contract[:], rec); err != nil {
			return false, err
		}
	} else {
		anchor, ok := a.closure.AnchorFor(id)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrNoAnchor, id)
		}
		witness = &anchor.Txid
		if err := a.tx.Bucket(bucketOpWitness).Put(id[:], anchor.Txid[:]); err != nil {
			return false, err
		}
		if err := a.close(contract, id, op.Inputs); err != nil {
			return false, err
		}
	}

	raw, err := model.MarshalOperation(op)
	if err != nil {
		return false, err
	}
	if err := ops.Put(id[:], raw); err != nil {
		return false, err
	}
	return true, a.assign(contract, op, witness)
}

// close records the seal closings of inputs and drops the state they held.
func (a appender) close(contract model.ContractID, id model.OpID, inputs []model.Opout) error {
	closings := a.tx.Bucket(bucketClosings)
	for _, in := range inputs {
		outpoint, err := a.resolveInput(in)
		if err != nil {
			return err
		}
		key := closingKey(contract, outpoint)
		if prev := closings.Get(key); prev != nil {
			if string(prev) == string(id[:]) {
				continue
			}
			var other model.OpID
			copy(other[:], prev)
			return fmt.Errorf("%w: %s closed by %s, not %s", ErrSealConflict, outpoint, other, id)
		}
		if err := closings.Put(key, id[:]); err != nil {
			return err
		}
		if err := deletePrefix(a.tx.Bucket(bucketAssignments), key); err != nil {
			return err
		}
	}
	return nil
}

func (a appender) resolveInput(in model.Opout) (wire.OutPoint, error) {
	parent, err := loadOperation(a.tx, in.Op)
	if err != nil {
		return wire.OutPoint{}, fmt.Errorf("%w: %s", ErrUnknownParent, in.Op)
	}
	assignment, ok := parent.Assignment(in)
	if !ok {
		return wire.OutPoint{}, fmt.Errorf("%w: no assignment %s", ErrUnknownParent, in)
	}
	witness, _ := witnessOf(a.tx, in.Op)
	return assignment.Seal.Resolve(witness)
}

func (a appender) assign(contract model.ContractID, op model.Operation, witness *chainhash.Hash) error {
	assignments := a.tx.Bucket(bucketAssignments)
	closings := a.tx.Bucket(bucketClosings)
	for n, assignment := range op.Assignments {
		outpoint, err := assignment.Seal.Resolve(witness)
		if err != nil {
			return fmt.Errorf("assignment %d: %w", n, err)
		}
		if closings.Get(closingKey(contract, outpoint)) != nil {
			continue
		}
		seq, err := assignments.NextSequence()
		if err != nil {
			return err
		}
		opout := op.Opout(n)
		if err := assignments.Put(assignmentKey(contract, outpoint, opout), encodeAssignment(assignment, seq)); err != nil {
			return err
		}
	}
	return nil
}

func (a appender) putAnchor(anchor model.Anchor) error {
	key := anchorKey(anchor.ContractID, anchor.Txid)
	anchors := a.tx.Bucket(bucketAnchors)
	if existing := anchors.Get(key); existing != nil {
		return nil
	}
	raw, err := model.MarshalAnchor(anchor)
	if err != nil {
		return err
	}
	if err := anchors.Put(key, raw); err != nil {
		return err
	}
	return a.tx.Bucket(bucketPending).Put(key, []byte{})
}

// OperationClosing returns the operation that closed the seal on outpoint for contract.
func (s *Store) OperationClosing(contract model.ContractID, outpoint wire.OutPoint) (model.OpID, bool, error) {
	var (
		id    model.OpID
		found bool
	)
	err := s.view("operation_closing", func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketClosings).Get(closingKey(contract, outpoint)); v != nil {
			copy(id[:], v)
			found = true
		}
		return nil
	})
	return id, found, err
}

// Has reports whether operation id is stored.
func (s *Store) Has(id model.OpID) (bool, error) {
	var found bool
	err := s.view("has", func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketOperations).Get(id[:]) != nil
		return nil
	})
	return found, err
}

// Operation loads operation id.
func (s *Store) Operation(id model.OpID) (model.Operation, error) {
	var op model.Operation
	err := s.view("operation", func(tx *bolt.Tx) error {
		var err error
		op, err = loadOperation(tx, id)
		return err
	})
	return op, err
}

// Genesis loads the genesis of contract.
func (s *Store) Genesis(contract model.ContractID) (model.Operation, error) {
	return s.Operation(model.OpID(contract))
}

// WitnessOf returns the witness txid of a stored transition.
func (s *Store) WitnessOf(id model.OpID) (chainhash.Hash, bool, error) {
	var (
		txid  chainhash.Hash
		found bool
	)
	err := s.view("witness_of", func(tx *bolt.Tx) error {
		if w, ok := witnessOf(tx, id); ok {
			txid, found = *w, true
		}
		return nil
	})
	return txid, found, err
}

// Anchor loads the anchor of contract in witness transaction txid.
func (s *Store) Anchor(contract model.ContractID, txid chainhash.Hash) (model.Anchor, error) {
	var anchor model.Anchor
	err := s.view("anchor", func(tx *bolt.Tx) error {
		var err error
		anchor, err = loadAnchor(tx, contract, txid)
		return err
	})
	return anchor, err
}

// Allocations lists the unspent state of contract. With outpoints set only
// state on those outpoints is returned.
func (s *Store) Allocations(contract model.ContractID, outpoints ...wire.OutPoint) ([]model.Allocation, error) {
	var out []model.Allocation
	err := s.view("allocations", func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAssignments).Cursor()
		prefixes := [][]byte{contract[:]}
		if len(outpoints) > 0 {
			prefixes = prefixes[:0]
			for _, op := range outpoints {
				prefixes = append(prefixes, closingKey(contract, op))
			}
		}
		for _, prefix := range prefixes {
			for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
				alloc, err := decodeAllocation(k, v)
				if err != nil {
					return err
				}
				out = append(out, alloc)
			}
		}
		return nil
	})
	return out, err
}

// Contracts lists every stored contract.
func (s *Store) Contracts() ([]Contract, error) {
	var out []Contract
	err := s.view("contracts", func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContracts).ForEach(func(k, v []byte) error {
			c, err := decodeContract(k, v)
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

// PendingAnchors lists anchors whose witness status is not settled yet.
func (s *Store) PendingAnchors() ([]model.Anchor, error) {
	var out []model.Anchor
	err := s.view("pending_anchors", func(tx *bolt.Tx) error {
		anchors := tx.Bucket(bucketAnchors)
		return tx.Bucket(bucketPending).ForEach(func(k, _ []byte) error {
			raw := anchors.Get(k)
			if raw == nil {
				return fmt.Errorf("%w: pending anchor %x", ErrNotFound, k)
			}
			anchor, err := decodeAnchor(raw)
			if err != nil {
				return err
			}
			out = append(out, anchor)
			return nil
		})
	})
	return out, err
}

// UpdateAnchorStatus records the witness status of an anchor. Settled anchors
// leave the pending set; unsettled ones re-enter it.
func (s *Store) UpdateAnchorStatus(contract model.ContractID, txid chainhash.Hash, status model.WitnessStatus, settled bool) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("update_anchor_status", err, started) }()

	return s.db.Update(func(tx *bolt.Tx) error {
		anchor, err := loadAnchor(tx, contract, txid)
		if err != nil {
			return err
		}
		anchor.Status = status
		raw, err := model.MarshalAnchor(anchor)
		if err != nil {
			return err
		}
		key := anchorKey(contract, txid)
		if err := tx.Bucket(bucketAnchors).Put(key, raw); err != nil {
			return err
		}
		if settled {
			return tx.Bucket(bucketPending).Delete(key)
		}
		return tx.Bucket(bucketPending).Put(key, []byte{})
	})
}

func (s *Store) view(operation string, fn func(tx *bolt.Tx) error) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operation, err, started) }()
	return s.db.View(fn)
}

func loadOperation(tx *bolt.Tx, id model.OpID) (model.Operation, error) {
	raw := tx.Bucket(bucketOperations).Get(id[:])
	if raw == nil {
		return model.Operation{}, fmt.Errorf("%w: operation %s", ErrNotFound, id)
	}
	return decodeOperation(raw)
}

func loadAnchor(tx *bolt.Tx, contract model.ContractID, txid chainhash.Hash) (model.Anchor, error) {
	raw := tx.Bucket(bucketAnchors).Get(anchorKey(contract, txid))
	if raw == nil {
		return model.Anchor{}, fmt.Errorf("%w: anchor %s", ErrNotFound, txid)
	}
	return decodeAnchor(raw)
}

func witnessOf(tx *bolt.Tx, id model.OpID) (*chainhash.Hash, bool) {
	v := tx.Bucket(bucketOpWitness).Get(id[:])
	if v == nil {
		return nil, false
	}
	var h chainhash.Hash
	copy(h[:], v)
	return &h, true
}

func deletePrefix(b *bolt.Bucket, prefix []byte) error {
	c := b.Cursor()
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
