package dataflash

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Text log format: one record per line, comma separated.
//
// - Blank lines ignored.
// - Lines starting with '#' ignored.
// - "FMT, <type>, <length>, <name>, <format>, <col>,<col>,..." defines a record type.
// - Any other line is "<name>, <v1>, <v2>, ..." for a previously defined name.
//
// Values are in natural units (degrees, metres); nothing is scaled.

// TextReader decodes a text DataFlash log.
type TextReader struct {
	rs     io.ReadSeeker
	closer io.Closer

	s       *bufio.Scanner
	line    int
	formats map[string]Format
}

// NewTextReader returns a reader over rs. Rewind seeks rs back to the start.
func NewTextReader(rs io.ReadSeeker) *TextReader {
	return newTextReader(rs, nil)
}

func newTextReader(rs io.ReadSeeker, closer io.Closer) *TextReader {
	r := &TextReader{rs: rs, closer: closer, formats: make(map[string]Format)}
	r.reset()
	return r
}

func (r *TextReader) reset() {
	r.s = bufio.NewScanner(r.rs)
	// Allow reasonably long lines.
	r.s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	r.line = 0
}

func (r *TextReader) Rewind() error {
	if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.reset()
	return nil
}

func (r *TextReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *TextReader) Next(types ...string) (Message, error) {
	for r.s.Scan() {
		r.line++
		line := strings.TrimSpace(r.s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		if parts[0] == fmtName {
			f, err := parseTextFMT(parts)
			if err != nil {
				return Message{}, fmt.Errorf("line %d: %w", r.line, err)
			}
			r.formats[f.Name] = f
			if wanted(types, fmtName) {
				return f.message(), nil
			}
			continue
		}

		f, ok := r.formats[parts[0]]
		if !ok || !wanted(types, f.Name) {
			continue
		}
		m, err := f.decodeText(parts[1:])
		if err != nil {
			return Message{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return m, nil
	}
	if err := r.s.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

func parseTextFMT(parts []string) (Format, error) {
	if len(parts) < 5 {
		return Format{}, fmt.Errorf("invalid FMT line (want at least 5 fields, got %d)", len(parts))
	}
	typ, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Format{}, fmt.Errorf("invalid FMT type %q: %w", parts[1], err)
	}
	length, err := strconv.Atoi(parts[2])
	if err != nil {
		return Format{}, fmt.Errorf("invalid FMT length %q: %w", parts[2], err)
	}
	f := Format{
		Type:    byte(typ),
		Length:  length,
		Name:    parts[3],
		Format:  parts[4],
		Columns: parts[5:],
	}
	_, err = recordLength(f.Format)
	f.decodable = err == nil
	return f, nil
}

func (f Format) decodeText(values []string) (Message, error) {
	m := Message{Type: f.Name, fields: make(map[string]float64, len(f.Format))}
	if !f.decodable {
		return m, nil
	}
	n := len(f.Format)
	if len(values) < n {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		name := f.column(i)
		switch f.Format[i] {
		case 'n', 'N', 'Z':
			m.setText(name, values[i])
		case 'a':
		default:
			v, err := strconv.ParseFloat(values[i], 64)
			if err != nil {
				return Message{}, fmt.Errorf("%s.%s: invalid value %q", f.Name, name, values[i])
			}
			m.fields[name] = v
		}
	}
	return m, nil
}

func (f Format) encodeText(values []float64) string {
	var b strings.Builder
	b.WriteString(f.Name)
	for i := 0; i < len(f.Format); i++ {
		b.WriteString(", ")
		switch c := f.Format[i]; c {
		case 'f', 'd', 'c', 'C', 'e', 'E', 'L':
			b.WriteString(strconv.FormatFloat(values[i], 'f', -1, 64))
		case 'n', 'N', 'Z', 'a':
		default:
			b.WriteString(strconv.FormatInt(int64(values[i]), 10))
		}
	}
	return b.String()
}

func textFMT(f Format) string {
	return fmt.Sprintf("FMT, %d, %d, %s, %s, %s", f.Type, f.Length, f.Name, f.Format, strings.Join(f.Columns, ","))
}
