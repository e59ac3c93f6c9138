package executor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
)

// Strategy picks fungible allocations covering target. Candidates arrive
// sorted by creation order, oldest first.
type Strategy interface {
	Name() string
	Select(candidates []model.Allocation, target uint64) ([]model.Allocation, error)
}

// ExactThenSmallest prefers a single exact match, then the subset with the
// smallest sum covering the target. Equal sums go to fewer inputs, then to
// the oldest allocations.
type ExactThenSmallest struct{}

// Aggregate spends the oldest allocations first until the target is covered.
type Aggregate struct{}

// SmallSize spends the largest allocations first, minimising inputs.
type SmallSize struct{}

func (ExactThenSmallest) Name() string { return "exact-then-smallest" }
func (Aggregate) Name() string         { return "aggregate" }
func (SmallSize) Name() string         { return "small-size" }

func (ExactThenSmallest) Select(candidates []model.Allocation, target uint64) ([]model.Allocation, error) {
	for _, c := range candidates {
		if c.Amount == target {
			return []model.Allocation{c}, nil
		}
	}
	search := newSubsetSearch(candidates, target)
	search.visit(0, 0)
	if search.best == nil {
		return accumulate(largestFirst(candidates), target)
	}
	picked := make([]model.Allocation, 0, len(search.best))
	for _, i := range search.best {
		picked = append(picked, search.items[i])
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Order < picked[j].Order })
	return picked, nil
}

func (Aggregate) Select(candidates []model.Allocation, target uint64) ([]model.Allocation, error) {
	return accumulate(candidates, target)
}

func (SmallSize) Select(candidates []model.Allocation, target uint64) ([]model.Allocation, error) {
	return accumulate(largestFirst(candidates), target)
}

// ParseStrategy maps a configuration value to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", ExactThenSmallest{}.Name():
		return ExactThenSmallest{}, nil
	case Aggregate{}.Name():
		return Aggregate{}, nil
	case SmallSize{}.Name():
		return SmallSize{}, nil
	default:
		return nil, fmt.Errorf("unknown coin selection strategy %q", name)
	}
}

func largestFirst(candidates []model.Allocation) []model.Allocation {
	sorted := append([]model.Allocation(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })
	return sorted
}

// searchBudget caps the nodes a subset search visits. The best subset found
// within the budget is used.
const searchBudget = 100_000

// subsetSearch is a branch and bound over allocations sorted largest first.
type subsetSearch struct {
	items  []model.Allocation
	rest   []uint64
	target uint64
	budget int

	picked  []int
	best    []int
	bestSum uint64
}

func newSubsetSearch(candidates []model.Allocation, target uint64) *subsetSearch {
	items := largestFirst(candidates)
	rest := make([]uint64, len(items)+1)
	for i := len(items) - 1; i >= 0; i-- {
		rest[i] = saturatingAdd(rest[i+1], items[i].Amount)
	}
	return &subsetSearch{items: items, rest: rest, target: target, budget: searchBudget}
}

func (s *subsetSearch) visit(i int, sum uint64) {
	if s.budget == 0 {
		return
	}
	s.budget--
	if sum >= s.target {
		s.consider(sum)
		return
	}
	if i == len(s.items) || saturatingAdd(sum, s.rest[i]) < s.target {
		return
	}
	next := saturatingAdd(sum, s.items[i].Amount)
	if s.best == nil || next <= s.bestSum {
		s.picked = append(s.picked, i)
		s.visit(i+1, next)
		s.picked = s.picked[:len(s.picked)-1]
	}
	s.visit(i+1, sum)
}

func (s *subsetSearch) consider(sum uint64) {
	switch {
	case s.best == nil, sum < s.bestSum:
	case sum > s.bestSum:
		return
	case len(s.picked) > len(s.best):
		return
	case len(s.picked) == len(s.best) && !s.older(s.picked, s.best):
		return
	}
	s.best = append(s.best[:0:0], s.picked...)
	s.bestSum = sum
}

// older reports whether subset a holds older allocations than b of equal size.
func (s *subsetSearch) older(a, b []int) bool {
	orders := func(idx []int) []uint64 {
		out := make([]uint64, len(idx))
		for k, i := range idx {
			out[k] = s.items[i].Order
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	oa, ob := orders(a), orders(b)
	for k := range oa {
		if oa[k] != ob[k] {
			return oa[k] < ob[k]
		}
	}
	return false
}

func saturatingAdd(a, b uint64) uint64 {
	if sum, err := safe.Add64(a, b); err == nil {
		return sum
	}
	return math.MaxUint64
}

func accumulate(candidates []model.Allocation, target uint64) ([]model.Allocation, error) {
	var (
		picked []model.Allocation
		sum    uint64
	)
	for _, c := range candidates {
		if sum >= target {
			break
		}
		next, err := safe.Add64(sum, c.Amount)
		if err != nil {
			return nil, err
		}
		sum = next
		picked = append(picked, c)
	}
	if sum < target {
		return nil, fmt.Errorf("%w: need %d, found %d", ErrInsufficientState, target, sum)
	}
	return picked, nil
}
