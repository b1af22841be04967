package clip

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// manifest is the YAML form of a clip set:
//
//	clips:
//	  - number: 1
//	    handle: intro
//	    unique_id: 11
//	    fps: 25
//	    frames: 250
type manifest struct {
	Clips []*Clip `yaml:"clips"`
}

// ReadManifest builds a registry from a YAML clip manifest. Unknown keys
// are rejected.
func ReadManifest(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m manifest

	err := dec.Decode(&m)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode clip manifest: %w", err)
	}

	return NewRegistry(m.Clips...)
}

// LoadManifest reads the clip manifest at path.
func LoadManifest(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip manifest: %w", err)
	}
	defer f.Close()

	return ReadManifest(f)
}

// WriteManifest writes the clips of r as a YAML manifest.
func WriteManifest(w io.Writer, r *Registry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(manifest{Clips: r.All()})
	if err != nil {
		return fmt.Errorf("encode clip manifest: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("close clip manifest: %w", err)
	}

	return nil
}
