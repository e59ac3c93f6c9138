package history

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	bolt "go.etcd.io/bbolt"
)

var ErrUnknownTerminal = errors.New("terminal does not name a stored assignment")

// AncestorsOf walks back from terminals to genesis inside one read
// transaction. Operations in checkpoints are known to the receiver and stop
// the walk without being included. Operations come out in discovery order.
func (s *Store) AncestorsOf(contract model.ContractID, terminals []model.Opout, checkpoints map[model.OpID]struct{}) (model.Closure, error) {
	closure := model.Closure{ContractID: contract}
	err := s.view("ancestors_of", func(tx *bolt.Tx) error {
		var (
			queue   []model.OpID
			visited = map[model.OpID]struct{}{}
			anchors = map[string]struct{}{}
		)
		for _, t := range terminals {
			op, err := loadOperation(tx, t.Op)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnknownTerminal, t, err)
			}
			if op.Contract() != contract {
				return fmt.Errorf("%w: %s belongs to contract %s", ErrUnknownTerminal, t, op.Contract())
			}
			if _, ok := op.Assignment(t); !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTerminal, t)
			}
			queue = append(queue, t.Op)
		}

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			if _, known := checkpoints[id]; known {
				continue
			}

			op, err := loadOperation(tx, id)
			if err != nil {
				return err
			}
			closure.Operations = append(closure.Operations, op)
			if op.IsGenesis() {
				continue
			}

			witness, ok := witnessOf(tx, id)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNoAnchor, id)
			}
			key := string(anchorKey(contract, *witness))
			if _, done := anchors[key]; !done {
				anchor, err := loadAnchor(tx, contract, *witness)
				if err != nil {
					return err
				}
				anchors[key] = struct{}{}
				closure.Anchors = append(closure.Anchors, anchor)
			}
			for _, in := range op.Inputs {
				queue = append(queue, in.Op)
			}
		}
		return nil
	})
	if err != nil {
		return model.Closure{}, err
	}
	return closure, nil
}
