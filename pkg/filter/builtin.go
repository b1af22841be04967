package filter

import "github.com/Sumatoshi-tech/cutfang/pkg/plant"

// Built-in filter names.
const (
	NameAudioVolume = "audio_volume"
	NameDissolve    = "dissolve"
	NameBlur        = "blur"
	NameCaption     = "caption"
	NameLetterbox   = "letterbox"
)

const (
	builtinAuthor = "cutfang"
	maxMixTracks  = 64
)

// Builtin returns the filters shipped with the engine.
func Builtin() []*Filter {
	return []*Filter{
		{
			Name:    NameAudioVolume,
			Author:  builtinAuthor,
			Version: 1,
			Flags:   FlagProcessLast,
			InChannels: []Channel{
				{Name: "in", Audio: true, MinRepeats: 1, MaxRepeats: maxMixTracks},
			},
			OutChannels: []Channel{{Name: "out", Audio: true}},
			Params: []Param{
				{Name: "volume", Seed: plant.SeedDouble, Default: plant.Floats(1)},
				{Name: "pan", Seed: plant.SeedDouble, Default: plant.Floats(0)},
				{Name: "swap", Seed: plant.SeedBoolean, Default: plant.Bools(false)},
			},
		},
		{
			Name:        NameDissolve,
			Author:      builtinAuthor,
			Version:     1,
			InChannels:  []Channel{{Name: "in A"}, {Name: "in B"}},
			OutChannels: []Channel{{Name: "out"}},
			Params: []Param{
				{Name: "amount", Seed: plant.SeedDouble, Default: plant.Floats(0), Transition: true},
			},
		},
		{
			Name:        NameBlur,
			Author:      builtinAuthor,
			Version:     2,
			InChannels:  []Channel{{Name: "in"}},
			OutChannels: []Channel{{Name: "out"}},
			Params: []Param{
				{Name: "radius", Seed: plant.SeedInt, Default: plant.Ints(3)},
			},
		},
		{
			Name:        NameCaption,
			Author:      builtinAuthor,
			Version:     1,
			Flags:       FlagStateful,
			InChannels:  []Channel{{Name: "in"}},
			OutChannels: []Channel{{Name: "out"}},
			Params: []Param{
				{Name: "font", Seed: plant.SeedString, Default: plant.Strings("sans"), Reinit: true},
				{Name: "text", Seed: plant.SeedString, Default: plant.Strings("")},
				{Name: "size", Seed: plant.SeedInt, Default: plant.Ints(24)},
			},
		},
		{
			Name:        NameLetterbox,
			Author:      builtinAuthor,
			Version:     1,
			Flags:       FlagProcessLast,
			InChannels:  []Channel{{Name: "in"}},
			OutChannels: []Channel{{Name: "out"}},
			Params: []Param{
				{Name: "ratio", Seed: plant.SeedDouble, Default: plant.Floats(16.0 / 9.0)},
			},
		},
	}
}

// BuiltinRegistry returns a registry holding Builtin.
func BuiltinRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}

	return r
}
