// Package plant implements the generic property bag that every layout record
// travels through: an ordered set of keyed leaves, each holding a typed array
// of values, together with its length-prefixed byte codec.
package plant

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Seed is the wire type tag of a leaf.
type Seed uint32

// Seed types. The numbering matches the original weed seed constants so that
// layouts written by older hosts keep their tags.
const (
	SeedInt     Seed = 1
	SeedDouble  Seed = 2
	SeedBoolean Seed = 3
	SeedString  Seed = 4
	SeedInt64   Seed = 5
	SeedRef     Seed = 65
)

// Plant types stored in the "type" leaf.
const (
	TypeEvent     = 256
	TypeEventList = 257
)

// KeyType is the leaf holding the plant type.
const KeyType = "type"

// Sentinel errors for leaf access.
var (
	ErrNoLeaf       = errors.New("leaf not present")
	ErrSeedMismatch = errors.New("leaf seed type mismatch")
	ErrEmptyLeaf    = errors.New("leaf has no elements")
)

// String returns the name of the seed type.
func (s Seed) String() string {
	switch s {
	case SeedInt:
		return "int"
	case SeedDouble:
		return "double"
	case SeedBoolean:
		return "boolean"
	case SeedString:
		return "string"
	case SeedInt64:
		return "int64"
	case SeedRef:
		return "ref"
	default:
		return fmt.Sprintf("seed(%d)", uint32(s))
	}
}

// Valid reports whether s is a seed type the codec understands.
func (s Seed) Valid() bool {
	switch s {
	case SeedInt, SeedDouble, SeedBoolean, SeedString, SeedInt64, SeedRef:
		return true
	default:
		return false
	}
}

// Value is a typed array of leaf elements. Integer-like seeds (int, int64,
// ref) share Ints.
type Value struct {
	Seed    Seed
	Ints    []int64
	Floats  []float64
	Bools   []bool
	Strings []string
}

// Ints builds an int-seeded value.
func Ints(vals ...int) Value {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}

	return Value{Seed: SeedInt, Ints: out}
}

// Int64s builds an int64-seeded value.
func Int64s(vals ...int64) Value {
	return Value{Seed: SeedInt64, Ints: slices.Clone(vals)}
}

// Floats builds a double-seeded value.
func Floats(vals ...float64) Value {
	return Value{Seed: SeedDouble, Floats: slices.Clone(vals)}
}

// Bools builds a boolean-seeded value.
func Bools(vals ...bool) Value {
	return Value{Seed: SeedBoolean, Bools: slices.Clone(vals)}
}

// Strings builds a string-seeded value.
func Strings(vals ...string) Value {
	return Value{Seed: SeedString, Strings: slices.Clone(vals)}
}

// Refs builds a reference-seeded value from numeric identifiers.
func Refs(ids ...uint64) Value {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id) //nolint:gosec // identifiers round-trip bit for bit.
	}

	return Value{Seed: SeedRef, Ints: out}
}

// Len returns the number of elements.
func (v Value) Len() int {
	switch v.Seed {
	case SeedDouble:
		return len(v.Floats)
	case SeedBoolean:
		return len(v.Bools)
	case SeedString:
		return len(v.Strings)
	default:
		return len(v.Ints)
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	return Value{
		Seed:    v.Seed,
		Ints:    slices.Clone(v.Ints),
		Floats:  slices.Clone(v.Floats),
		Bools:   slices.Clone(v.Bools),
		Strings: slices.Clone(v.Strings),
	}
}

// Equal reports whether two values have the same seed and elements.
func (v Value) Equal(o Value) bool {
	if v.Seed != o.Seed || v.Len() != o.Len() {
		return false
	}

	switch v.Seed {
	case SeedDouble:
		for i := range v.Floats {
			if v.Floats[i] != o.Floats[i] && !(math.IsNaN(v.Floats[i]) && math.IsNaN(o.Floats[i])) {
				return false
			}
		}

		return true
	case SeedBoolean:
		return slices.Equal(v.Bools, o.Bools)
	case SeedString:
		return slices.Equal(v.Strings, o.Strings)
	default:
		return slices.Equal(v.Ints, o.Ints)
	}
}

// RefIDs returns the elements of a ref-seeded value as identifiers.
func (v Value) RefIDs() []uint64 {
	out := make([]uint64, len(v.Ints))
	for i, n := range v.Ints {
		out[i] = uint64(n) //nolint:gosec // see Refs.
	}

	return out
}

// Leaf is one keyed value of a plant.
type Leaf struct {
	Key   string
	Value Value
}

// Plant is an ordered property bag. Leaves keep insertion order so that the
// byte encoding is deterministic.
type Plant struct {
	leaves []Leaf
	index  map[string]int
}

// New creates a plant of the given type.
func New(plantType int) *Plant {
	p := &Plant{index: make(map[string]int)}
	p.Set(KeyType, Ints(plantType))

	return p
}

// Type returns the plant type, or 0 when the type leaf is missing.
func (p *Plant) Type() int {
	t, err := p.Int(KeyType)
	if err != nil {
		return 0
	}

	return t
}

// Set stores v under key, replacing any previous value in place.
func (p *Plant) Set(key string, v Value) {
	if p.index == nil {
		p.index = make(map[string]int)
	}

	if i, ok := p.index[key]; ok {
		p.leaves[i].Value = v

		return
	}

	p.index[key] = len(p.leaves)
	p.leaves = append(p.leaves, Leaf{Key: key, Value: v})
}

// Get returns the value stored under key.
func (p *Plant) Get(key string) (Value, bool) {
	i, ok := p.index[key]
	if !ok {
		return Value{}, false
	}

	return p.leaves[i].Value, true
}

// Has reports whether key is present.
func (p *Plant) Has(key string) bool {
	_, ok := p.index[key]

	return ok
}

// Delete removes key if present.
func (p *Plant) Delete(key string) {
	i, ok := p.index[key]
	if !ok {
		return
	}

	p.leaves = slices.Delete(p.leaves, i, i+1)
	delete(p.index, key)

	for j := i; j < len(p.leaves); j++ {
		p.index[p.leaves[j].Key] = j
	}
}

// Leaves returns the leaves in insertion order. The slice must not be modified.
func (p *Plant) Leaves() []Leaf {
	return p.leaves
}

// NumLeaves returns the leaf count.
func (p *Plant) NumLeaves() int {
	return len(p.leaves)
}

func (p *Plant) typed(key string, seeds ...Seed) (Value, error) {
	v, ok := p.Get(key)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNoLeaf, key)
	}

	if !slices.Contains(seeds, v.Seed) {
		return Value{}, fmt.Errorf("%w: %s is %s", ErrSeedMismatch, key, v.Seed)
	}

	return v, nil
}

// Int returns the first element of an int or int64 leaf.
func (p *Plant) Int(key string) (int, error) {
	v, err := p.typed(key, SeedInt, SeedInt64)
	if err != nil {
		return 0, err
	}

	if len(v.Ints) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyLeaf, key)
	}

	return int(v.Ints[0]), nil
}

// IntArray returns all elements of an int or int64 leaf.
func (p *Plant) IntArray(key string) ([]int, error) {
	v, err := p.typed(key, SeedInt, SeedInt64)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(v.Ints))
	for i, n := range v.Ints {
		out[i] = int(n)
	}

	return out, nil
}

// Int64 returns the first element of an int64 or int leaf.
func (p *Plant) Int64(key string) (int64, error) {
	v, err := p.typed(key, SeedInt64, SeedInt)
	if err != nil {
		return 0, err
	}

	if len(v.Ints) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyLeaf, key)
	}

	return v.Ints[0], nil
}

// Int64Array returns all elements of an int64 or int leaf.
func (p *Plant) Int64Array(key string) ([]int64, error) {
	v, err := p.typed(key, SeedInt64, SeedInt)
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.Ints), nil
}

// Float returns the first element of a double leaf.
func (p *Plant) Float(key string) (float64, error) {
	v, err := p.typed(key, SeedDouble)
	if err != nil {
		return 0, err
	}

	if len(v.Floats) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyLeaf, key)
	}

	return v.Floats[0], nil
}

// FloatArray returns all elements of a double leaf.
func (p *Plant) FloatArray(key string) ([]float64, error) {
	v, err := p.typed(key, SeedDouble)
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.Floats), nil
}

// Bool returns the first element of a boolean leaf.
func (p *Plant) Bool(key string) (bool, error) {
	v, err := p.typed(key, SeedBoolean)
	if err != nil {
		return false, err
	}

	if len(v.Bools) == 0 {
		return false, fmt.Errorf("%w: %s", ErrEmptyLeaf, key)
	}

	return v.Bools[0], nil
}

// BoolArray returns all elements of a boolean leaf.
func (p *Plant) BoolArray(key string) ([]bool, error) {
	v, err := p.typed(key, SeedBoolean)
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.Bools), nil
}

// String returns the first element of a string leaf.
func (p *Plant) String(key string) (string, error) {
	v, err := p.typed(key, SeedString)
	if err != nil {
		return "", err
	}

	if len(v.Strings) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyLeaf, key)
	}

	return v.Strings[0], nil
}

// Refs returns the identifiers of a ref leaf.
func (p *Plant) Refs(key string) ([]uint64, error) {
	v, err := p.typed(key, SeedRef)
	if err != nil {
		return nil, err
	}

	return v.RefIDs(), nil
}
