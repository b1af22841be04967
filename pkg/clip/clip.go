// Package clip is the registry of source clips a timeline refers to by
// session-relative number.
package clip

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors.
var (
	ErrDuplicateClip = errors.New("duplicate clip")
	ErrInvalidClip   = errors.New("invalid clip")
)

// Clip describes one loaded source clip.
type Clip struct {
	Number   int    `yaml:"number"`
	Handle   string `yaml:"handle"`
	UniqueID uint64 `yaml:"unique_id"`
	Name     string `yaml:"name,omitempty"`

	FPS    float64 `yaml:"fps"`
	Frames int64   `yaml:"frames"`
	Width  int     `yaml:"width,omitempty"`
	Height int     `yaml:"height,omitempty"`

	AudioSeconds float64 `yaml:"audio_seconds,omitempty"`
	AudioRate    int     `yaml:"audio_rate,omitempty"`
	Channels     int     `yaml:"channels,omitempty"`
}

// HasAudio reports whether the clip carries audio.
func (c *Clip) HasAudio() bool { return c.AudioSeconds > 0 }

// Source resolves clips by session number.
type Source interface {
	Clip(number int) (*Clip, bool)
}

// Registry holds the clips of one session.
type Registry struct {
	clips map[int]*Clip
}

// NewRegistry creates a registry from clips.
func NewRegistry(clips ...*Clip) (*Registry, error) {
	r := &Registry{clips: make(map[int]*Clip, len(clips))}

	for _, c := range clips {
		err := r.Add(c)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Add registers c under its number.
func (r *Registry) Add(c *Clip) error {
	if c == nil || c.Number < 1 || c.FPS <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidClip, c)
	}

	if _, exists := r.clips[c.Number]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateClip, c.Number)
	}

	r.clips[c.Number] = c

	return nil
}

// Remove forgets the clip with the given number.
func (r *Registry) Remove(number int) { delete(r.clips, number) }

// Clip returns the clip with the given number.
func (r *Registry) Clip(number int) (*Clip, bool) {
	c, ok := r.clips[number]

	return c, ok
}

// ByHandle returns the clip with the given handle.
func (r *Registry) ByHandle(handle string) (*Clip, bool) {
	for _, c := range r.clips {
		if c.Handle == handle {
			return c, true
		}
	}

	return nil, false
}

// All returns the clips ordered by number.
func (r *Registry) All() []*Clip {
	out := make([]*Clip, 0, len(r.clips))
	for _, c := range r.clips {
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b *Clip) int { return a.Number - b.Number })

	return out
}

// Numbering is the saved identity of one clip at backup time.
type Numbering struct {
	Number   int     `json:"number"`
	Handle   string  `json:"handle"`
	UniqueID uint64  `json:"unique_id"`
	FPS      float64 `json:"fps"`
}

// Numbering captures the current clip numbering for a crash-recovery side
// file.
func (r *Registry) Numbering() []Numbering {
	all := r.All()
	out := make([]Numbering, len(all))

	for i, c := range all {
		out[i] = Numbering{Number: c.Number, Handle: c.Handle, UniqueID: c.UniqueID, FPS: c.FPS}
	}

	return out
}

// Mapping translates clip numbers saved in a layout to current numbers and
// records the frame rate each clip had when the layout was written. A nil
// Mapping keeps every number.
type Mapping struct {
	numbers map[int]int
	fps     map[int]float64
}

// Renumber matches saved clip identities against the registry by handle,
// then by unique id.
func (r *Registry) Renumber(saved []Numbering) *Mapping {
	m := &Mapping{numbers: make(map[int]int, len(saved)), fps: make(map[int]float64, len(saved))}

	for _, s := range saved {
		c, ok := r.ByHandle(s.Handle)
		if !ok || (s.UniqueID != 0 && c.UniqueID != 0 && c.UniqueID != s.UniqueID) {
			c, ok = r.byUniqueID(s.UniqueID)
		}

		if !ok {
			m.numbers[s.Number] = -1

			continue
		}

		m.numbers[s.Number] = c.Number
		m.fps[s.Number] = s.FPS
	}

	return m
}

func (r *Registry) byUniqueID(id uint64) (*Clip, bool) {
	if id == 0 {
		return nil, false
	}

	for _, c := range r.clips {
		if c.UniqueID == id {
			return c, true
		}
	}

	return nil, false
}

// Translate returns the current number for a saved clip number. Numbers the
// mapping does not mention are kept; known but missing clips map to -1.
func (m *Mapping) Translate(saved int) int {
	if m == nil {
		return saved
	}

	if n, ok := m.numbers[saved]; ok {
		return n
	}

	return saved
}

// SavedFPS returns the frame rate a clip had when the layout was written.
func (m *Mapping) SavedFPS(saved int) (float64, bool) {
	if m == nil {
		return 0, false
	}

	fps, ok := m.fps[saved]

	return fps, ok && fps > 0
}
