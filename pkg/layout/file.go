package layout

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Sumatoshi-tech/cutfang/pkg/event"
)

// Extension is the file extension of layout files.
const Extension = ".lay"

const tmpSuffix = ".tmp"

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// FileOptions tunes SaveFile.
type FileOptions struct {
	SaveOptions

	// Compress writes the layout as a zstd stream.
	Compress bool
}

// LoadFile loads the layout at path. Compressed layouts are recognised by
// the zstd frame magic.
func LoadFile(path string) (*Loaded, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return Load(rc)
}

// Open returns the raw layout stream of the file at path, decompressing it
// when it starts with the zstd frame magic.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}

	br := bufio.NewReader(f)

	magic, _ := br.Peek(len(zstdMagic))
	if !bytes.Equal(magic, zstdMagic) {
		return &layoutFile{Reader: br, file: f}, nil
	}

	decoder, err := zstd.NewReader(br)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("open compressed layout: %w", err)
	}

	return &layoutFile{Reader: decoder, file: f, decoder: decoder}, nil
}

type layoutFile struct {
	io.Reader

	file    *os.File
	decoder *zstd.Decoder
}

func (lf *layoutFile) Close() error {
	if lf.decoder != nil {
		lf.decoder.Close()
	}

	err := lf.file.Close()
	if err != nil {
		return fmt.Errorf("close layout: %w", err)
	}

	return nil
}

// SaveFile writes l to path through a temporary file that is renamed into
// place, so a failed save never clobbers the previous layout.
func SaveFile(path string, l *event.List, opts FileOptions) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create layout dir: %w", err)
	}

	tmpPath := path + tmpSuffix

	fd, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create layout: %w", err)
	}

	writeErr := write(fd, l, opts)
	if writeErr != nil {
		fd.Close()
		os.Remove(tmpPath)

		return writeErr
	}

	syncErr := fd.Sync()
	if syncErr != nil {
		fd.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("sync layout: %w", syncErr)
	}

	closeErr := fd.Close()
	if closeErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("close layout: %w", closeErr)
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		return fmt.Errorf("rename layout: %w", renameErr)
	}

	return nil
}

func write(w io.Writer, l *event.List, opts FileOptions) error {
	if !opts.Compress {
		return Save(w, l, opts.SaveOptions)
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}

	err = Save(encoder, l, opts.SaveOptions)
	if err != nil {
		encoder.Close()

		return err
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return fmt.Errorf("finish compressed layout: %w", closeErr)
	}

	return nil
}
