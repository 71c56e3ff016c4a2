package dataflash

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Writer produces DataFlash logs, binary or text.
//
// The FMT record for FMT itself is written on creation; every other record
// type must be declared with Define before it is written.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	binary  bool
	formats map[string]Format
	buf     []byte
	closed  bool
}

// CreateWriter creates path, writing binary records for .bin and text otherwise.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := newWriter(f, IsBinaryPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.f = f
	return w, nil
}

// NewWriter writes to an arbitrary destination. Close flushes but does not close dst.
func NewWriter(dst io.Writer, binary bool) (*Writer, error) {
	return newWriter(dst, binary)
}

func newWriter(dst io.Writer, binary bool) (*Writer, error) {
	ww := &Writer{
		w:       bufio.NewWriterSize(dst, 64*1024),
		binary:  binary,
		formats: make(map[string]Format),
	}
	if err := ww.Define(fmtSelf); err != nil {
		return nil, err
	}
	return ww, nil
}

// Define writes the FMT record for f.
func (ww *Writer) Define(f Format) error {
	if ww.closed {
		return errors.New("dataflash writer is closed")
	}
	if _, ok := ww.formats[f.Name]; ok {
		return fmt.Errorf("dataflash: format %s already defined", f.Name)
	}
	var err error
	if ww.binary {
		_, err = ww.w.Write(encodeFMT(f))
	} else {
		_, err = fmt.Fprintln(ww.w, textFMT(f))
	}
	if err != nil {
		return err
	}
	ww.formats[f.Name] = f
	return nil
}

// Write appends one record of a defined type.
func (ww *Writer) Write(name string, values ...float64) error {
	if ww.closed {
		return errors.New("dataflash writer is closed")
	}
	f, ok := ww.formats[name]
	if !ok || name == fmtName {
		return fmt.Errorf("dataflash: format %s not defined", name)
	}
	if len(values) != len(f.Format) {
		return fmt.Errorf("dataflash: %s wants %d values, got %d", name, len(f.Format), len(values))
	}

	if !ww.binary {
		_, err := fmt.Fprintln(ww.w, f.encodeText(values))
		return err
	}

	b := append(ww.buf[:0], head1, head2, f.Type)
	b, err := f.encode(b, values)
	if err != nil {
		return err
	}
	ww.buf = b
	_, err = ww.w.Write(b)
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		if ww.f != nil {
			_ = ww.f.Close()
		}
		return err
	}
	if ww.f == nil {
		return nil
	}
	return ww.f.Close()
}
