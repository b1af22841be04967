// Package report renders layouts, repair logs, layout maps and backups for
// the command line: tables, YAML and JSON dumps, diffs and HTML plots.
package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
	"github.com/Sumatoshi-tech/cutfang/pkg/layout"
	"github.com/Sumatoshi-tech/cutfang/pkg/plant"
)

// Sentinel errors.
var (
	ErrBadValue = errors.New("leaf value does not fit its seed")
	ErrBadSeed  = errors.New("unknown seed name")
)

// Leaf is one plant leaf of a dump.
type Leaf struct {
	Key    string `json:"key"    yaml:"key"`
	Seed   string `json:"seed"   yaml:"seed"`
	Values []any  `json:"values" yaml:"values,flow"`
}

// Plant is one plant of a dump; leaves keep their stored order.
type Plant struct {
	Leaves []Leaf `json:"leaves" yaml:"leaves"`
}

// Document is a layout as plain data: the header plant and one plant per
// event, exactly as stored.
type Document struct {
	Header Plant   `json:"header" yaml:"header"`
	Events []Plant `json:"events" yaml:"events"`
}

// ReadDocument reads a layout stream plant by plant without interpreting
// the events, so damaged layouts can still be inspected.
func ReadDocument(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)

	header, err := plant.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", layout.ErrNotLayout, err)
	}

	doc := &Document{Header: fromPlant(header)}

	for {
		p, decErr := plant.Decode(br)
		if errors.Is(decErr, io.EOF) {
			return doc, nil
		}

		if decErr != nil {
			return doc, fmt.Errorf("%w after %d events: %w", layout.ErrTruncated, len(doc.Events), decErr)
		}

		doc.Events = append(doc.Events, fromPlant(p))
	}
}

// FromList builds the document of an in-memory list.
func FromList(l *event.List) *Document {
	doc := &Document{Header: fromPlant(layout.HeaderPlant(l))}

	for e := range l.All() {
		doc.Events = append(doc.Events, fromPlant(layout.EventPlant(e)))
	}

	return doc
}

// WriteLayout encodes the document as a layout stream.
func (d *Document) WriteLayout(w io.Writer) error {
	bw := bufio.NewWriter(w)

	header, err := d.Header.toPlant()
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}

	err = plant.Encode(bw, header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, ev := range d.Events {
		p, convErr := ev.toPlant()
		if convErr != nil {
			return fmt.Errorf("event %d: %w", i, convErr)
		}

		err = plant.Encode(bw, p)
		if err != nil {
			return fmt.Errorf("write event %d: %w", i, err)
		}
	}

	err = bw.Flush()
	if err != nil {
		return fmt.Errorf("flush layout: %w", err)
	}

	return nil
}

// WriteYAML writes the document as YAML.
func (d *Document) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(d)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("close yaml: %w", err)
	}

	return nil
}

// WriteJSON writes the document as indented JSON.
func (d *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(d)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// Lines renders one line per event: kind, timecode and the other leaves.
// It is the text compared by Diff.
func (d *Document) Lines() []string {
	out := make([]string, len(d.Events))

	for i, ev := range d.Events {
		out[i] = ev.line()
	}

	return out
}

func (p Plant) leaf(key string) (Leaf, bool) {
	for _, l := range p.Leaves {
		if l.Key == key {
			return l, true
		}
	}

	return Leaf{}, false
}

func (p Plant) int64Leaf(key string) (int64, bool) {
	l, ok := p.leaf(key)
	if !ok || len(l.Values) == 0 {
		return 0, false
	}

	n, err := toInt64(l.Values[0])

	return n, err == nil
}

func (p Plant) kind() event.Kind {
	n, _ := p.int64Leaf(layout.KeyHint)

	return event.Kind(n)
}

func (p Plant) line() string {
	tc, _ := p.int64Leaf(layout.KeyTimecode)

	var sb strings.Builder

	fmt.Fprintf(&sb, "%s @%d", p.kind(), tc)

	for _, l := range p.details() {
		sb.WriteByte(' ')
		sb.WriteString(l)
	}

	return sb.String()
}

// details formats every leaf but the type, hint, timecode and skip.
func (p Plant) details(skip ...string) []string {
	var out []string

	for _, l := range p.Leaves {
		switch {
		case l.Key == plant.KeyType, l.Key == layout.KeyHint, l.Key == layout.KeyTimecode, slices.Contains(skip, l.Key):
			continue
		}

		vals := make([]string, len(l.Values))
		for i, v := range l.Values {
			vals[i] = fmt.Sprint(v)
		}

		out = append(out, l.Key+"="+strings.Join(vals, ","))
	}

	return out
}

func fromPlant(p *plant.Plant) Plant {
	leaves := p.Leaves()
	out := Plant{Leaves: make([]Leaf, len(leaves))}

	for i, l := range leaves {
		out.Leaves[i] = Leaf{Key: l.Key, Seed: l.Value.Seed.String(), Values: values(l.Value)}
	}

	return out
}

func values(v plant.Value) []any {
	out := make([]any, 0, v.Len())

	switch v.Seed {
	case plant.SeedDouble:
		for _, f := range v.Floats {
			out = append(out, f)
		}
	case plant.SeedBoolean:
		for _, b := range v.Bools {
			out = append(out, b)
		}
	case plant.SeedString:
		for _, s := range v.Strings {
			out = append(out, s)
		}
	case plant.SeedRef:
		for _, n := range v.Ints {
			out = append(out, uint64(n)) //nolint:gosec // refs are stored bit for bit.
		}
	default:
		for _, n := range v.Ints {
			out = append(out, n)
		}
	}

	return out
}

func (p Plant) toPlant() (*plant.Plant, error) {
	kind, ok := p.int64Leaf(plant.KeyType)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q leaf", ErrBadValue, plant.KeyType)
	}

	out := plant.New(int(kind))

	for _, l := range p.Leaves {
		if l.Key == plant.KeyType {
			continue
		}

		v, err := l.value()
		if err != nil {
			return nil, fmt.Errorf("leaf %q: %w", l.Key, err)
		}

		out.Set(l.Key, v)
	}

	return out, nil
}

func (l Leaf) value() (plant.Value, error) {
	switch l.Seed {
	case "double":
		vals := make([]float64, len(l.Values))

		for i, raw := range l.Values {
			f, err := toFloat(raw)
			if err != nil {
				return plant.Value{}, err
			}

			vals[i] = f
		}

		return plant.Floats(vals...), nil
	case "boolean":
		vals := make([]bool, len(l.Values))

		for i, raw := range l.Values {
			b, ok := raw.(bool)
			if !ok {
				return plant.Value{}, fmt.Errorf("%w: %v is not a boolean", ErrBadValue, raw)
			}

			vals[i] = b
		}

		return plant.Bools(vals...), nil
	case "string":
		vals := make([]string, len(l.Values))

		for i, raw := range l.Values {
			s, ok := raw.(string)
			if !ok {
				return plant.Value{}, fmt.Errorf("%w: %v is not a string", ErrBadValue, raw)
			}

			vals[i] = s
		}

		return plant.Strings(vals...), nil
	case "int", "int64", "ref":
		vals := make([]int64, len(l.Values))

		for i, raw := range l.Values {
			n, err := toInt64(raw)
			if err != nil {
				return plant.Value{}, err
			}

			vals[i] = n
		}

		seed := map[string]plant.Seed{"int": plant.SeedInt, "int64": plant.SeedInt64, "ref": plant.SeedRef}[l.Seed]

		return plant.Value{Seed: seed, Ints: vals}, nil
	default:
		return plant.Value{}, fmt.Errorf("%w: %q", ErrBadSeed, l.Seed)
	}
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil //nolint:gosec // refs are stored bit for bit.
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrBadValue, n)
		}

		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, nil
		}

		u, uerr := strconv.ParseUint(n.String(), 10, 64)
		if uerr != nil {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrBadValue, n)
		}

		return int64(u), nil //nolint:gosec // refs are stored bit for bit.
	default:
		return 0, fmt.Errorf("%w: %v is not an integer", ErrBadValue, raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number", ErrBadValue, n)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("%w: %v is not a number", ErrBadValue, raw)
	}
}
