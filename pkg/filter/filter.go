// Package filter describes the effect types an event list can instantiate:
// their channels, parameter templates and flags, keyed by a stable hash name.
package filter

import (
	"encoding/hex"
	"strconv"

	"lukechampine.com/blake3"

	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// Flag is a filter capability bit.
type Flag uint32

// Filter flags.
const (
	// FlagProcessLast marks filters that run after every other instance,
	// such as the audio mixer.
	FlagProcessLast Flag = 1 << iota
	// FlagStateful marks filters whose output depends on earlier frames.
	FlagStateful
)

// Channel is an input or output channel template.
type Channel struct {
	Name     string
	Audio    bool
	Optional bool
	// MinRepeats and MaxRepeats bound the per-instance repeat count.
	// Zero values mean exactly one.
	MinRepeats int
	MaxRepeats int
}

// RepeatBounds returns the allowed repeat count range.
func (c Channel) RepeatBounds() (low, high int) {
	low, high = c.MinRepeats, c.MaxRepeats
	if low <= 0 {
		low = 1
	}

	if high < low {
		high = low
	}

	return low, high
}

// AcceptsRepeats reports whether n repeats satisfy the template. A disabled
// optional channel has zero repeats.
func (c Channel) AcceptsRepeats(n int) bool {
	if n == 0 {
		return c.Optional
	}

	low, high := c.RepeatBounds()

	return n >= low && n <= high
}

// Param is a parameter template.
type Param struct {
	Name    string
	Seed    plant.Seed
	Default plant.Value
	// Reinit parameters may only be set when the instance starts.
	Reinit bool
	// Transition parameters drive a mix between two inputs.
	Transition bool
}

// Filter is one installed effect type.
type Filter struct {
	Name    string
	Author  string
	Version int
	Flags   Flag

	InChannels  []Channel
	OutChannels []Channel
	Params      []Param

	hash string
}

// Hash returns the stable hash name stored in FILTER_INIT events.
func (f *Filter) Hash() string {
	if f.hash == "" {
		sum := blake3.Sum256([]byte(f.Name + "\x00" + f.Author + "\x00" + strconv.Itoa(f.Version)))
		f.hash = hex.EncodeToString(sum[:16])
	}

	return f.hash
}

// ProcessLast reports whether the filter runs after all other instances.
func (f *Filter) ProcessLast() bool { return f.Flags&FlagProcessLast != 0 }

// IsAudio reports whether every input channel carries audio.
func (f *Filter) IsAudio() bool {
	if len(f.InChannels) == 0 {
		return false
	}

	for _, c := range f.InChannels {
		if !c.Audio {
			return false
		}
	}

	return true
}

// IsTransition reports whether the filter has a transition parameter.
func (f *Filter) IsTransition() bool {
	for _, p := range f.Params {
		if p.Transition {
			return true
		}
	}

	return false
}

// DefaultCounts returns the repeat count of each input channel for a new
// instance.
func (f *Filter) DefaultCounts() []int {
	counts := make([]int, len(f.InChannels))
	for i, c := range f.InChannels {
		counts[i], _ = c.RepeatBounds()
	}

	return counts
}

// CountsValid reports whether counts fit the input channel templates. An
// empty slice means defaults.
func (f *Filter) CountsValid(counts []int) bool {
	if len(counts) == 0 {
		return true
	}

	if len(counts) != len(f.InChannels) {
		return false
	}

	for i, n := range counts {
		if !f.InChannels[i].AcceptsRepeats(n) {
			return false
		}
	}

	return true
}

// Param returns the template at index, or false when out of range.
func (f *Filter) Param(index int) (Param, bool) {
	if index < 0 || index >= len(f.Params) {
		return Param{}, false
	}

	return f.Params[index], true
}

// SeedMatches reports whether v may be stored in the parameter. Integer
// parameters accept booleans and vice versa.
func (p Param) SeedMatches(v plant.Value) bool {
	if v.Seed == p.Seed {
		return true
	}

	switch p.Seed {
	case plant.SeedInt, plant.SeedBoolean:
		return v.Seed == plant.SeedInt || v.Seed == plant.SeedBoolean
	case plant.SeedDouble:
		return v.Seed == plant.SeedInt
	default:
		return false
	}
}
