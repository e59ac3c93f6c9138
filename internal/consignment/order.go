package consignment

import (
	"fmt"
	"sort"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

// Order sorts ops so that every operation follows the operations it spends
// from. Among operations ready at the same time the smaller id comes first,
// which makes the result independent of input order. Parents outside ops are
// ignored.
func Order(ops []model.Operation) ([]model.Operation, error) {
	byID := make(map[model.OpID]model.Operation, len(ops))
	for _, op := range ops {
		byID[op.ID()] = op
	}

	pending := make(map[model.OpID]int, len(byID))
	children := make(map[model.OpID][]model.OpID, len(byID))
	for id, op := range byID {
		parents := map[model.OpID]struct{}{}
		for _, in := range op.Inputs {
			if _, ok := byID[in.Op]; ok && in.Op != id {
				parents[in.Op] = struct{}{}
			}
		}
		pending[id] = len(parents)
		for p := range parents {
			children[p] = append(children[p], id)
		}
	}

	var ready []model.OpID
	for id, n := range pending {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]model.Operation, 0, len(byID))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Compare(ready[j]) < 0 })
		id := ready[0]
		ready = ready[1:]
		out = append(out, byID[id])
		for _, child := range children[id] {
			pending[child]--
			if pending[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if len(out) != len(byID) {
		return nil, fmt.Errorf("%w: %d of %d operations ordered", ErrCycle, len(out), len(byID))
	}
	return out, nil
}
