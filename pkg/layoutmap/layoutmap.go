// Package layoutmap maintains the layout.map index of a clip set: for every
// clip, the layouts that use it and how far into the clip they reach. It is
// consulted before a clip is closed or shortened to list the layouts that
// would break.
package layoutmap

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/cutfang/pkg/clip"
)

// FileName is the name of the index inside a set directory.
const FileName = "layout.map"

// Use records how one layout uses a clip.
type Use struct {
	// Path is absolute in memory; Save stores it relative to the set
	// directory when it lies inside it.
	Path string
	// MaxFrame is the highest source frame the layout shows (1-based).
	MaxFrame int64
	// MaxAudio is the furthest point in seconds the layout plays.
	MaxAudio float64
}

// Entry lists the layouts using one clip.
type Entry struct {
	Handle   string
	UniqueID uint64
	Name     string
	Layouts  []Use
}

// Map is the index of one set. Entries are kept sorted by handle.
type Map struct {
	Entries []*Entry
}

// Entry returns the entry for the clip with handle and unique id.
func (m *Map) Entry(handle string, uniqueID uint64) *Entry {
	for _, e := range m.Entries {
		if e.Handle == handle && e.UniqueID == uniqueID {
			return e
		}
	}

	return nil
}

// Record notes that the layout in u.Path uses c, replacing an earlier record
// for the same layout.
func (m *Map) Record(c *clip.Clip, u Use) {
	e := m.Entry(c.Handle, c.UniqueID)
	if e == nil {
		e = &Entry{Handle: c.Handle, UniqueID: c.UniqueID, Name: c.Name}
		m.Entries = append(m.Entries, e)
		slices.SortFunc(m.Entries, compareEntries)
	}

	e.Name = c.Name

	idx := slices.IndexFunc(e.Layouts, func(x Use) bool { return x.Path == u.Path })
	if idx >= 0 {
		e.Layouts[idx] = u

		return
	}

	e.Layouts = append(e.Layouts, u)
}

// Forget drops every record of the layout at path. Entries left without
// layouts are removed.
func (m *Map) Forget(path string) {
	for _, e := range m.Entries {
		e.Layouts = slices.DeleteFunc(e.Layouts, func(u Use) bool { return u.Path == path })
	}

	m.Entries = slices.DeleteFunc(m.Entries, func(e *Entry) bool { return len(e.Layouts) == 0 })
}

// Prune forgets layouts whose files no longer exist and returns their paths.
func (m *Map) Prune() []string {
	var gone []string

	for _, e := range m.Entries {
		for _, u := range e.Layouts {
			if _, err := os.Stat(u.Path); err != nil && !slices.Contains(gone, u.Path) {
				gone = append(gone, u.Path)
			}
		}
	}

	for _, path := range gone {
		m.Forget(path)
	}

	return gone
}

// Affected returns the layouts of c that reach past frames or past audio
// seconds, the layouts a cut of c to that length would invalidate. Pass -1
// to leave either limit unchecked; 0 means the clip loses it all.
func (m *Map) Affected(c *clip.Clip, frames int64, audio float64) []Use {
	e := m.Entry(c.Handle, c.UniqueID)
	if e == nil {
		return nil
	}

	var out []Use

	for _, u := range e.Layouts {
		if (frames >= 0 && u.MaxFrame > frames) || (audio >= 0 && u.MaxAudio > audio) {
			out = append(out, u)
		}
	}

	return out
}

// Layouts returns every layout path in the map, sorted.
func (m *Map) Layouts() []string {
	var out []string

	for _, e := range m.Entries {
		for _, u := range e.Layouts {
			if !slices.Contains(out, u.Path) {
				out = append(out, u.Path)
			}
		}
	}

	slices.Sort(out)

	return out
}

func compareEntries(a, b *Entry) int {
	if c := strings.Compare(a.Handle, b.Handle); c != 0 {
		return c
	}

	switch {
	case a.UniqueID < b.UniqueID:
		return -1
	case a.UniqueID > b.UniqueID:
		return 1
	default:
		return 0
	}
}

// relative stores path relative to dir when it lies inside it.
func relative(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return filepath.ToSlash(rel)
}

func absolute(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, filepath.FromSlash(path))
}
