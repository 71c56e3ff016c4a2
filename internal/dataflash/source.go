package dataflash

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Source is a rewindable stream of decoded log messages.
//
// Next returns the next message whose type is one of types (any type when
// types is empty), or io.EOF once the log is exhausted.
type Source interface {
	Rewind() error
	Next(types ...string) (Message, error)
	Close() error
}

// IsBinaryPath reports whether path names a binary DataFlash log (.bin, any case).
func IsBinaryPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bin")
}

// Open opens a DataFlash log, choosing the binary reader for .bin files and
// the text reader for anything else.
func Open(path string) (Source, error) {
	f, err := openLog(path)
	if err != nil {
		return nil, err
	}

	if !IsBinaryPath(path) {
		return newTextReader(f, f), nil
	}

	// Binary logs are read whole; rewinding is then just resetting an offset.
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewBinaryReader(data), nil
}
