package plant

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/Sumatoshi-tech/cutfang/pkg/safeconv"
)

// Element sizes on the wire.
const (
	int32Size = 4
	int64Size = 8
	boolSize  = 4
	wordSize  = 4
)

// Sanity limits applied while decoding so that a corrupt length prefix cannot
// trigger a huge allocation.
const (
	MaxLeaves      = 1 << 12
	MaxKeyLen      = 1 << 10
	MaxElements    = 1 << 24
	MaxElementSize = 1 << 26
)

// ErrCorrupt reports a structurally invalid plant encoding.
var ErrCorrupt = errors.New("corrupt plant encoding")

// Encode writes p in the plant dump format: a leaf count, then per leaf the
// key length and key bytes, the seed type, the element count and one
// length-prefixed blob per element. All integers are little-endian.
func Encode(w io.Writer, p *Plant) error {
	buf := AppendEncoded(nil, p)

	_, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("write plant: %w", err)
	}

	return nil
}

// AppendEncoded appends the encoding of p to dst.
func AppendEncoded(dst []byte, p *Plant) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, safeconv.MustIntToUint32(len(p.leaves)))

	for _, leaf := range p.leaves {
		dst = binary.LittleEndian.AppendUint32(dst, safeconv.MustIntToUint32(len(leaf.Key)))
		dst = append(dst, leaf.Key...)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(leaf.Value.Seed))
		dst = binary.LittleEndian.AppendUint32(dst, safeconv.MustIntToUint32(leaf.Value.Len()))
		dst = appendElements(dst, leaf.Value)
	}

	return dst
}

func appendElements(dst []byte, v Value) []byte {
	switch v.Seed {
	case SeedInt:
		for _, n := range v.Ints {
			dst = binary.LittleEndian.AppendUint32(dst, int32Size)
			dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(n))) //nolint:gosec // int seed is 32-bit on the wire.
		}
	case SeedInt64, SeedRef:
		for _, n := range v.Ints {
			dst = binary.LittleEndian.AppendUint32(dst, int64Size)
			dst = binary.LittleEndian.AppendUint64(dst, uint64(n)) //nolint:gosec // two's complement round trip.
		}
	case SeedDouble:
		for _, f := range v.Floats {
			dst = binary.LittleEndian.AppendUint32(dst, int64Size)
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
		}
	case SeedBoolean:
		for _, b := range v.Bools {
			var n uint32
			if b {
				n = 1
			}

			dst = binary.LittleEndian.AppendUint32(dst, boolSize)
			dst = binary.LittleEndian.AppendUint32(dst, n)
		}
	case SeedString:
		for _, s := range v.Strings {
			dst = binary.LittleEndian.AppendUint32(dst, safeconv.MustIntToUint32(len(s)))
			dst = append(dst, s...)
		}
	}

	return dst
}

// EncodedSize returns the exact number of bytes Encode writes for p.
func EncodedSize(p *Plant) int {
	size := wordSize

	for _, leaf := range p.leaves {
		size += wordSize + len(leaf.Key) + wordSize + wordSize

		switch leaf.Value.Seed {
		case SeedInt:
			size += len(leaf.Value.Ints) * (wordSize + int32Size)
		case SeedInt64, SeedRef:
			size += len(leaf.Value.Ints) * (wordSize + int64Size)
		case SeedDouble:
			size += len(leaf.Value.Floats) * (wordSize + int64Size)
		case SeedBoolean:
			size += len(leaf.Value.Bools) * (wordSize + boolSize)
		case SeedString:
			for _, s := range leaf.Value.Strings {
				size += wordSize + len(s)
			}
		}
	}

	return size
}

// Decode reads one plant. It returns io.EOF when r is exhausted before the
// first byte of a plant, and an error wrapping io.ErrUnexpectedEOF when the
// stream ends inside one.
func Decode(r io.Reader) (*Plant, error) {
	d := decoder{r: r}

	count, err := d.word()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, err
	}

	if count > MaxLeaves {
		return nil, fmt.Errorf("%w: %d leaves", ErrCorrupt, count)
	}

	p := &Plant{index: make(map[string]int, count)}

	for range count {
		leaf, leafErr := d.leaf()
		if leafErr != nil {
			return nil, unexpected(leafErr)
		}

		p.Set(leaf.Key, leaf.Value)
	}

	return p, nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("read plant: %w", io.ErrUnexpectedEOF)
	}

	return err
}

type decoder struct {
	r   io.Reader
	buf [int64Size]byte
}

func (d *decoder) word() (uint32, error) {
	_, err := io.ReadFull(d.r, d.buf[:wordSize])
	if err != nil {
		return 0, err //nolint:wrapcheck // callers distinguish io.EOF.
	}

	return binary.LittleEndian.Uint32(d.buf[:wordSize]), nil
}

func (d *decoder) bytes(n uint32) ([]byte, error) {
	out := make([]byte, n)

	_, err := io.ReadFull(d.r, out)
	if err != nil {
		return nil, err //nolint:wrapcheck // see word.
	}

	return out, nil
}

func (d *decoder) leaf() (Leaf, error) {
	keyLen, err := d.word()
	if err != nil {
		return Leaf{}, err
	}

	if keyLen > MaxKeyLen {
		return Leaf{}, fmt.Errorf("%w: key length %d", ErrCorrupt, keyLen)
	}

	key, err := d.bytes(keyLen)
	if err != nil {
		return Leaf{}, err
	}

	seedWord, err := d.word()
	if err != nil {
		return Leaf{}, err
	}

	seed := Seed(seedWord)
	if !seed.Valid() {
		return Leaf{}, fmt.Errorf("%w: leaf %q has %s", ErrCorrupt, key, seed)
	}

	nelems, err := d.word()
	if err != nil {
		return Leaf{}, err
	}

	if nelems > MaxElements {
		return Leaf{}, fmt.Errorf("%w: leaf %q has %d elements", ErrCorrupt, key, nelems)
	}

	v := Value{Seed: seed}

	for range nelems {
		elemErr := d.element(&v)
		if elemErr != nil {
			return Leaf{}, elemErr
		}
	}

	return Leaf{Key: string(key), Value: v}, nil
}

func (d *decoder) element(v *Value) error {
	size, err := d.word()
	if err != nil {
		return err
	}

	if size > MaxElementSize {
		return fmt.Errorf("%w: element size %d", ErrCorrupt, size)
	}

	raw, err := d.bytes(size)
	if err != nil {
		return err
	}

	switch v.Seed {
	case SeedInt:
		if size != int32Size {
			return fmt.Errorf("%w: int element of %d bytes", ErrCorrupt, size)
		}

		v.Ints = append(v.Ints, int64(int32(binary.LittleEndian.Uint32(raw)))) //nolint:gosec // sign extension.
	case SeedInt64, SeedRef:
		if size != int64Size {
			return fmt.Errorf("%w: int64 element of %d bytes", ErrCorrupt, size)
		}

		v.Ints = append(v.Ints, int64(binary.LittleEndian.Uint64(raw))) //nolint:gosec // two's complement.
	case SeedDouble:
		if size != int64Size {
			return fmt.Errorf("%w: double element of %d bytes", ErrCorrupt, size)
		}

		v.Floats = append(v.Floats, math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	case SeedBoolean:
		if size != boolSize {
			return fmt.Errorf("%w: boolean element of %d bytes", ErrCorrupt, size)
		}

		v.Bools = append(v.Bools, binary.LittleEndian.Uint32(raw) != 0)
	case SeedString:
		v.Strings = append(v.Strings, string(raw))
	}

	return nil
}
