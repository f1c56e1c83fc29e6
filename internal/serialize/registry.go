package serialize

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/born-ml/frames/internal/frame"
)

// Serializable is implemented by every object that can be split into a header
// and frames.
type Serializable interface {
	// TypeName returns the name the type is registered under.
	TypeName() string
	// Serialize decomposes the object. Frames are borrowed from the object.
	Serialize() (Header, []frame.Frame, error)
}

// DeserializeFunc rebuilds an object from a header and the frames produced for it.
// It must be deterministic and take ownership of frames.
type DeserializeFunc func(h Header, frames []frame.Frame) (Serializable, error)

// TypeCode returns the registry code for a type name.
func TypeCode(name string) uint64 {
	return xxhash.Sum64String(name)
}

type registration struct {
	name string
	fn   DeserializeFunc
}

// Registry maps type tokens to deserializers. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[uint64]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[uint64]registration)}
}

// DefaultRegistry is populated by participating packages from init.
var DefaultRegistry = NewRegistry()

// Register adds a deserializer under name.
func (r *Registry) Register(name string, fn DeserializeFunc) error {
	if name == "" {
		return fmt.Errorf("serialize: empty type name")
	}
	if fn == nil {
		return fmt.Errorf("serialize: nil deserializer for %q", name)
	}

	code := TypeCode(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.types[code]; ok {
		if prev.name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateType, name)
		}
		return fmt.Errorf("%w: %q collides with %q (code %#x)", ErrDuplicateType, name, prev.name, code)
	}
	r.types[code] = registration{name: name, fn: fn}
	return nil
}

// MustRegister is like Register but panics on error. Intended for init functions.
func (r *Registry) MustRegister(name string, fn DeserializeFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Token returns the type token for a registered name.
func (r *Registry) Token(name string) (TypeToken, error) {
	code := TypeCode(name)

	r.mu.RLock()
	reg, ok := r.types[code]
	r.mu.RUnlock()

	if !ok || reg.name != name {
		return TypeToken{}, fmt.Errorf("%w: %q", ErrUnresolvedType, name)
	}
	return TypeToken{Name: name, Code: code}, nil
}

// Resolve returns the deserializer for tok. Both the code and the name must match.
func (r *Registry) Resolve(tok TypeToken) (DeserializeFunc, error) {
	r.mu.RLock()
	reg, ok := r.types[tok.Code]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (code %#x)", ErrUnresolvedType, tok.Name, tok.Code)
	}
	if reg.name != tok.Name {
		return nil, fmt.Errorf("%w: code %#x is %q, header says %q", ErrUnresolvedType, tok.Code, reg.name, tok.Name)
	}
	return reg.fn, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for _, reg := range r.types {
		names = append(names, reg.name)
	}
	sort.Strings(names)
	return names
}

// Register adds fn to DefaultRegistry.
func Register(name string, fn DeserializeFunc) error {
	return DefaultRegistry.Register(name, fn)
}

// MustRegister adds fn to DefaultRegistry and panics on error.
func MustRegister(name string, fn DeserializeFunc) {
	DefaultRegistry.MustRegister(name, fn)
}
