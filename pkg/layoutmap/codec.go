package layoutmap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// Limits applied while decoding so a corrupt count cannot force a huge
// allocation.
const (
	maxString  = 1 << 16
	maxEntries = 1 << 20
)

// ErrCorrupt is returned for a truncated or malformed layout.map.
var ErrCorrupt = errors.New("corrupt layout map")

// Encode writes m. Every count and length is a little-endian uint32, unique
// ids are uint64, max frames int32 and max audio float64 bits. Paths inside
// dir are written relative to it.
func Encode(w io.Writer, m *Map, dir string) error {
	bw := bufio.NewWriter(w)

	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, safeconv.MustIntToUint32(len(m.Entries)))

	for _, e := range m.Entries {
		buf = appendString(buf, e.Handle)
		buf = binary.LittleEndian.AppendUint64(buf, e.UniqueID)
		buf = appendString(buf, e.Name)
		buf = binary.LittleEndian.AppendUint32(buf, safeconv.MustIntToUint32(len(e.Layouts)))

		for _, u := range e.Layouts {
			buf = appendString(buf, relative(dir, u.Path))
			buf = binary.LittleEndian.AppendUint32(buf, uint32(clampFrame(u.MaxFrame)))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(u.MaxAudio))
		}
	}

	_, err := bw.Write(buf)
	if err != nil {
		return fmt.Errorf("write layout map: %w", err)
	}

	err = bw.Flush()
	if err != nil {
		return fmt.Errorf("flush layout map: %w", err)
	}

	return nil
}

// Decode reads a map written by Encode. Relative paths are resolved
// against dir.
func Decode(r io.Reader, dir string) (*Map, error) {
	d := &decoder{r: bufio.NewReader(r)}

	n := d.count(maxEntries)
	m := &Map{Entries: make([]*Entry, 0, n)}

	for range n {
		e := &Entry{Handle: d.string(), UniqueID: d.uint64(), Name: d.string()}

		layouts := d.count(maxEntries)
		for range layouts {
			e.Layouts = append(e.Layouts, Use{
				Path:     absolute(dir, d.string()),
				MaxFrame: int64(int32(d.uint32())), //nolint:gosec // stored as int32.
				MaxAudio: math.Float64frombits(d.uint64()),
			})
		}

		if d.err != nil {
			break
		}

		m.Entries = append(m.Entries, e)
	}

	if d.err != nil {
		return nil, d.err
	}

	return m, nil
}

// Load reads dir/layout.map. A missing file yields an empty map.
func Load(dir string) (*Map, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return &Map{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open layout map: %w", err)
	}
	defer f.Close()

	return Decode(f, dir)
}

// Save writes dir/layout.map, or removes it when m is empty.
func Save(dir string, m *Map) error {
	path := filepath.Join(dir, FileName)

	if len(m.Entries) == 0 {
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove layout map: %w", err)
		}

		return nil
	}

	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create layout map: %w", err)
	}

	err = Encode(f, m, dir)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close layout map: %w", closeErr)
	}

	if err != nil {
		os.Remove(tmp)

		return err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return fmt.Errorf("rename layout map: %w", err)
	}

	return nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, safeconv.MustIntToUint32(len(s)))

	return append(buf, s...)
}

func clampFrame(n int64) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < 0:
		return 0
	default:
		return int32(n)
	}
}

// decoder keeps the first error; later reads return zero values.
type decoder struct {
	r   *bufio.Reader
	err error
	buf [8]byte
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return d.buf[:n]
	}

	_, err := io.ReadFull(d.r, d.buf[:n])
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return d.buf[:n]
}

func (d *decoder) uint32() uint32 { return binary.LittleEndian.Uint32(d.read(4)) }

func (d *decoder) uint64() uint64 { return binary.LittleEndian.Uint64(d.read(8)) }

func (d *decoder) count(limit int) int {
	n := int(d.uint32())
	if d.err == nil && n > limit {
		d.err = fmt.Errorf("%w: count %d", ErrCorrupt, n)
	}

	if d.err != nil {
		return 0
	}

	return n
}

func (d *decoder) string() string {
	n := d.count(maxString)
	if n == 0 {
		return ""
	}

	b := make([]byte, n)

	_, err := io.ReadFull(d.r, b)
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrCorrupt, err)

		return ""
	}

	return string(b)
}
