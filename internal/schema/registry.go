package schema

import (
	"fmt"
	"sort"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

// Interface binds human names used in invoices to a schema's numeric types.
type Interface struct {
	Name              string
	Schema            model.SchemaID
	Operations        map[string]model.TransitionType
	Assignments       map[string]model.AssignmentType
	DefaultOperation  string
	DefaultAssignment string
}

// Operation resolves name, or the default when name is empty.
func (i *Interface) Operation(name string) (model.TransitionType, error) {
	if name == "" {
		name = i.DefaultOperation
	}
	t, ok := i.Operations[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no operation %q", ErrUnknownInterface, i.Name, name)
	}
	return t, nil
}

// Assignment resolves name, or the default when name is empty.
func (i *Interface) Assignment(name string) (model.AssignmentType, error) {
	if name == "" {
		name = i.DefaultAssignment
	}
	t, ok := i.Assignments[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s has no assignment %q", ErrUnknownInterface, i.Name, name)
	}
	return t, nil
}

// Registry resolves schemas and interfaces by identifier.
type Registry struct {
	schemas    map[model.SchemaID]*Schema
	interfaces map[string]*Interface
	// defaults maps a schema to the interface used when an invoice omits one.
	defaults map[model.SchemaID]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:    map[model.SchemaID]*Schema{},
		interfaces: map[string]*Interface{},
		defaults:   map[model.SchemaID]string{},
	}
}

// Default returns a registry with the built-in fungible and collectible schemas.
func Default() *Registry {
	r := NewRegistry()
	r.Register(FungibleSchema(), &Interface{
		Name:              FungibleInterface,
		Schema:            FungibleSchemaID,
		Operations:        map[string]model.TransitionType{"transfer": TransitionTransfer, "blank": model.BlankTransition},
		Assignments:       map[string]model.AssignmentType{"assetOwner": AssetOwner},
		DefaultOperation:  "transfer",
		DefaultAssignment: "assetOwner",
	})
	r.Register(CollectibleSchema(), &Interface{
		Name:              CollectibleInterface,
		Schema:            CollectibleSchemaID,
		Operations:        map[string]model.TransitionType{"transfer": TransitionTransfer, "blank": model.BlankTransition},
		Assignments:       map[string]model.AssignmentType{"assetOwner": AssetOwner},
		DefaultOperation:  "transfer",
		DefaultAssignment: "assetOwner",
	})
	return r
}

// Register adds s and its interfaces. The first interface becomes the schema default.
func (r *Registry) Register(s *Schema, ifaces ...*Interface) {
	r.schemas[s.ID] = s
	for _, iface := range ifaces {
		r.interfaces[iface.Name] = iface
		if _, ok := r.defaults[s.ID]; !ok {
			r.defaults[s.ID] = iface.Name
		}
	}
}

// Schema looks up a schema by id.
func (r *Registry) Schema(id model.SchemaID) (*Schema, error) {
	s, ok := r.schemas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, id)
	}
	return s, nil
}

// Interface looks up name, or the default interface of schema when name is empty.
// The interface must be bound to schema.
func (r *Registry) Interface(name string, schema model.SchemaID) (*Interface, error) {
	if name == "" {
		name = r.defaults[schema]
	}
	iface, ok := r.interfaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, name)
	}
	if iface.Schema != schema {
		return nil, fmt.Errorf("%w: %q is not implemented by schema %q", ErrUnknownInterface, name, schema)
	}
	return iface, nil
}

// Schemas lists registered schema ids in sorted order.
func (r *Registry) Schemas() []model.SchemaID {
	ids := make([]model.SchemaID, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
