package layout

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// ProgressInterval is how many events Save writes between progress calls.
const ProgressInterval = 100

// SaveOptions tunes Save.
type SaveOptions struct {
	// Progress, when set, is called with the number of events written so far
	// every ProgressInterval events and once at the end.
	Progress func(done, total int)
}

// Save writes the header plant of l followed by one plant per event.
func Save(w io.Writer, l *event.List, opts SaveOptions) error {
	bw := bufio.NewWriter(w)

	err := plant.Encode(bw, HeaderPlant(l))
	if err != nil {
		return fmt.Errorf("save header: %w", err)
	}

	total := l.Len()
	done := 0

	var buf []byte

	for e := range l.All() {
		buf = plant.AppendEncoded(buf[:0], EventPlant(e))

		_, err = bw.Write(buf)
		if err != nil {
			return fmt.Errorf("save event %d: %w", e.ID(), err)
		}

		done++
		if opts.Progress != nil && done%ProgressInterval == 0 {
			opts.Progress(done, total)
		}
	}

	err = bw.Flush()
	if err != nil {
		return fmt.Errorf("save flush: %w", err)
	}

	if opts.Progress != nil {
		opts.Progress(done, total)
	}

	return nil
}

// ByteSize returns the exact number of bytes Save writes for l.
func ByteSize(l *event.List) int64 {
	size := int64(plant.EncodedSize(HeaderPlant(l)))

	for e := range l.All() {
		size += int64(plant.EncodedSize(EventPlant(e)))
	}

	return size
}

// Reject records an event plant the loader could not turn into an event.
type Reject struct {
	// Index is the position of the plant in the stream, counting from 0
	// after the header.
	Index int
	TC    int64
	Err   error
}

// Loaded is the outcome of Load.
type Loaded struct {
	List     *event.List
	Rejected []Reject
}

// Load reads a layout stream. Events are linked in arrival order and keep
// the identifiers they were saved under, so references resolve against the
// saved graph; ordering and reference integrity are left to rectification.
// A stream that ends inside a plant yields the events read so far together
// with an error wrapping ErrTruncated.
func Load(r io.Reader) (*Loaded, error) {
	br := bufio.NewReader(r)

	header, err := plant.Decode(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty stream", ErrNotLayout)
		}

		return nil, fmt.Errorf("%w: %w", ErrNotLayout, err)
	}

	l, err := listFromHeader(header)
	if err != nil {
		return nil, err
	}

	out := &Loaded{List: l}

	for index := 0; ; index++ {
		p, decErr := plant.Decode(br)
		if errors.Is(decErr, io.EOF) {
			return out, nil
		}

		if decErr != nil {
			return out, fmt.Errorf("%w after %d events: %w", ErrTruncated, index, decErr)
		}

		d, evErr := DecodeEvent(p)
		if evErr != nil {
			out.Rejected = append(out.Rejected, Reject{Index: index, TC: d.TC, Err: evErr})

			continue
		}

		linkErr := adopt(l, d)
		if linkErr != nil {
			out.Rejected = append(out.Rejected, Reject{Index: index, TC: d.TC, Err: linkErr})
		}
	}
}

// adopt links a decoded event at the tail under its saved identifier.
// Events saved without one get a fresh identifier.
func adopt(l *event.List, d Decoded) error {
	if d.ID == 0 {
		l.Append(d.TC, d.Body)

		return nil
	}

	if l.Get(d.ID) != nil {
		return fmt.Errorf("%w: %d", ErrDuplicateID, d.ID)
	}

	e, err := l.NewWithID(d.ID, d.TC, d.Body)
	if err != nil {
		return fmt.Errorf("adopt event %d: %w", d.ID, err)
	}

	return l.LinkBefore(e, nil) //nolint:wrapcheck // a fresh event is never linked.
}
