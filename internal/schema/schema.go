// Package schema holds the closed set of contract schemas, their interface
// bindings and the per-transition validation tables used by the validator.
package schema

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnknownSchema    = errors.New("unknown schema")
	ErrUnknownInterface = errors.New("unknown interface")
	ErrSchemaMismatch   = errors.New("operation does not conform to schema")
	ErrStateImbalance   = errors.New("state is not conserved")
	ErrRuleViolation    = errors.New("schema rule violated")
)

// StateKind is the shape of owned state an assignment type carries.
type StateKind uint8

const (
	// Fungible state is a u64 amount conserved by sum.
	Fungible StateKind = iota + 1
	// Data state is an opaque token conserved as a multiset.
	Data
)

func (k StateKind) String() string {
	switch k {
	case Fungible:
		return "fungible"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// GlobalDef declares a global state slot. Globals live in genesis only.
type GlobalDef struct {
	Name string
	Min  int
	Max  int
	// Text values must be valid NFC UTF-8.
	Text bool
	// Size fixes the value length when non-zero.
	Size int
}

// AssignmentDef declares an owned state slot.
type AssignmentDef struct {
	Name string
	Kind StateKind
}

// TransitionRule checks a transition against the assignments it spends.
type TransitionRule func(s *Schema, op model.Operation, inputs []model.Assignment) error

// Schema is a contract type: declared slots plus validation tables.
type Schema struct {
	ID          model.SchemaID
	Name        string
	Globals     map[model.GlobalType]GlobalDef
	Assignments map[model.AssignmentType]AssignmentDef
	Transitions map[model.TransitionType]string

	genesis func(s *Schema, op model.Operation) error
	rules   map[model.TransitionType]TransitionRule
}

// Kind returns the state kind of assignment type t.
func (s *Schema) Kind(t model.AssignmentType) (StateKind, bool) {
	def, ok := s.Assignments[t]
	return def.Kind, ok
}

// Conform checks that op only uses slots and shapes s declares.
func (s *Schema) Conform(op model.Operation) error {
	switch op.Kind {
	case model.KindGenesis:
		if op.Schema != s.ID {
			return mismatch("genesis declares schema %q, want %q", op.Schema, s.ID)
		}
		if op.Transition != 0 {
			return mismatch("genesis carries transition type %d", op.Transition)
		}
		if err := s.conformGlobals(op.Globals); err != nil {
			return err
		}
		for i, a := range op.Assignments {
			if a.Seal.Witness {
				return mismatch("genesis assignment %d uses a witness seal", i)
			}
		}
	case model.KindTransition:
		if op.Schema != "" || op.Network != "" {
			return mismatch("transition carries genesis fields")
		}
		if _, ok := s.Transitions[op.Transition]; !ok && op.Transition != model.BlankTransition {
			return mismatch("undeclared transition type %d", op.Transition)
		}
		if len(op.Globals) > 0 {
			return mismatch("transition %d carries global state", op.Transition)
		}
		if len(op.Inputs) == 0 {
			return mismatch("transition without inputs")
		}
		seen := make(map[model.Opout]struct{}, len(op.Inputs))
		for _, in := range op.Inputs {
			if _, dup := seen[in]; dup {
				return mismatch("input %s spent twice", in)
			}
			seen[in] = struct{}{}
			if _, ok := s.Assignments[in.Type]; !ok {
				return mismatch("input of undeclared assignment type %d", in.Type)
			}
		}
	default:
		return mismatch("operation kind %d not declared", op.Kind)
	}

	for i, a := range op.Assignments {
		def, ok := s.Assignments[a.Type]
		if !ok {
			return mismatch("assignment %d has undeclared type %d", i, a.Type)
		}
		if !a.Seal.Method.Valid() {
			return mismatch("assignment %d has close method %d", i, a.Seal.Method)
		}
		switch def.Kind {
		case Fungible:
			if len(a.Data) > 0 || a.Amount == 0 {
				return mismatch("assignment %d: %s needs a non-zero amount and no data", i, def.Name)
			}
		case Data:
			if a.Amount != 0 || len(a.Data) == 0 {
				return mismatch("assignment %d: %s needs data and no amount", i, def.Name)
			}
		}
	}
	return nil
}

func (s *Schema) conformGlobals(globals []model.GlobalState) error {
	counts := make(map[model.GlobalType]int, len(s.Globals))
	for _, g := range globals {
		def, ok := s.Globals[g.Type]
		if !ok {
			return mismatch("undeclared global type %d", g.Type)
		}
		counts[g.Type]++
		if def.Size > 0 && len(g.Value) != def.Size {
			return mismatch("global %s must be %d bytes", def.Name, def.Size)
		}
		if def.Text && (!utf8.Valid(g.Value) || !norm.NFC.IsNormal(g.Value)) {
			return mismatch("global %s is not NFC text", def.Name)
		}
	}
	for t, def := range s.Globals {
		if n := counts[t]; n < def.Min || n > def.Max {
			return mismatch("global %s occurs %d times, want %d..%d", def.Name, n, def.Min, def.Max)
		}
	}
	return nil
}

// Check runs the schema's arithmetic and business rules. inputs holds the
// assignments spent by op in the order of op.Inputs; it is empty for genesis.
func (s *Schema) Check(op model.Operation, inputs []model.Assignment) error {
	if op.IsGenesis() {
		if s.genesis == nil {
			return nil
		}
		return s.genesis(s, op)
	}
	if op.Transition == model.BlankTransition {
		return Conserve(s, inputs, op.Assignments)
	}
	rule, ok := s.rules[op.Transition]
	if !ok {
		return mismatch("no rule for transition %d", op.Transition)
	}
	return rule(s, op, inputs)
}

// Conserve checks that outputs carry exactly the state of inputs per assignment type.
func Conserve(s *Schema, inputs, outputs []model.Assignment) error {
	in, err := tally(s, inputs)
	if err != nil {
		return err
	}
	out, err := tally(s, outputs)
	if err != nil {
		return err
	}
	for t := range union(in.amounts, out.amounts) {
		if in.amounts[t] != out.amounts[t] {
			return fmt.Errorf("%w: type %d inputs %d outputs %d", ErrStateImbalance, t, in.amounts[t], out.amounts[t])
		}
	}
	for key := range union(in.tokens, out.tokens) {
		if in.tokens[key] != out.tokens[key] {
			return fmt.Errorf("%w: type %d token %x in %d out %d", ErrStateImbalance, key.t, key.data, in.tokens[key], out.tokens[key])
		}
	}
	return nil
}

type tokenKey struct {
	t    model.AssignmentType
	data string
}

type totals struct {
	amounts map[model.AssignmentType]uint64
	tokens  map[tokenKey]int
}

func tally(s *Schema, assignments []model.Assignment) (totals, error) {
	t := totals{amounts: map[model.AssignmentType]uint64{}, tokens: map[tokenKey]int{}}
	for _, a := range assignments {
		kind, ok := s.Kind(a.Type)
		if !ok {
			return t, mismatch("undeclared assignment type %d", a.Type)
		}
		switch kind {
		case Fungible:
			sum, err := safe.Add64(t.amounts[a.Type], a.Amount)
			if err != nil {
				return t, fmt.Errorf("%w: type %d: %v", ErrRuleViolation, a.Type, err)
			}
			t.amounts[a.Type] = sum
		case Data:
			t.tokens[tokenKey{t: a.Type, data: string(a.Data)}]++
		}
	}
	return t, nil
}

func union[K comparable, V any](a, b map[K]V) map[K]struct{} {
	out := make(map[K]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}
