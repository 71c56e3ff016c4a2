package dataflash

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Record framing for binary logs.
const (
	head1 byte = 0xA3
	head2 byte = 0x95

	// FMT records describe every other record type, including themselves.
	fmtType   byte = 0x80
	fmtLength      = 89
	fmtName        = "FMT"
	fmtFormat      = "BBnNZ"
)

// fieldSize is the encoded width of each DataFlash format character.
var fieldSize = map[byte]int{
	'a': 64, // int16[32]
	'b': 1,
	'B': 1,
	'h': 2,
	'H': 2,
	'i': 4,
	'I': 4,
	'f': 4,
	'd': 8,
	'n': 4,
	'N': 16,
	'Z': 64,
	'c': 2, // int16 * 0.01
	'C': 2, // uint16 * 0.01
	'e': 4, // int32 * 0.01
	'E': 4, // uint32 * 0.01
	'L': 4, // int32 lat/lon * 1e-7
	'M': 1, // flight mode
	'q': 8,
	'Q': 8,
}

// Format describes one record type, as carried by an FMT record.
type Format struct {
	Type    byte
	Length  int // total record length including the 3 byte header
	Name    string
	Format  string
	Columns []string

	// decodable is false when Format contains characters we do not know;
	// such records are stepped over using Length.
	decodable bool
}

// SIMFormat is the simulator ground-truth state record written by SITL.
var SIMFormat = MustFormat(0x96, "SIM", "QccCfLLffff",
	"TimeUS", "Roll", "Pitch", "Yaw", "Alt", "Lat", "Lng", "Q1", "Q2", "Q3", "Q4")

// NewFormat validates the format characters and computes the record length.
func NewFormat(typ byte, name, format string, columns ...string) (Format, error) {
	if name == "" || len(name) > 4 {
		return Format{}, fmt.Errorf("dataflash: invalid format name %q", name)
	}
	if len(format) > 16 {
		return Format{}, fmt.Errorf("dataflash: format %q longer than 16 characters", format)
	}
	if len(format) != len(columns) {
		return Format{}, fmt.Errorf("dataflash: format %q has %d fields but %d columns", format, len(format), len(columns))
	}
	n, err := recordLength(format)
	if err != nil {
		return Format{}, err
	}
	return Format{Type: typ, Length: n, Name: name, Format: format, Columns: columns, decodable: true}, nil
}

// MustFormat is NewFormat for package-level definitions.
func MustFormat(typ byte, name, format string, columns ...string) Format {
	f, err := NewFormat(typ, name, format, columns...)
	if err != nil {
		panic(err)
	}
	return f
}

func recordLength(format string) (int, error) {
	n := 3
	for i := 0; i < len(format); i++ {
		sz, ok := fieldSize[format[i]]
		if !ok {
			return 0, fmt.Errorf("dataflash: unknown format character %q in %q", format[i], format)
		}
		n += sz
	}
	return n, nil
}

func (f Format) column(i int) string {
	if i < len(f.Columns) {
		return f.Columns[i]
	}
	return ""
}

// parseFMT decodes the body (header stripped) of a binary FMT record.
func parseFMT(body []byte) Format {
	f := Format{
		Type:   body[0],
		Length: int(body[1]),
		Name:   cString(body[2:6]),
		Format: cString(body[6:22]),
	}
	if cols := cString(body[22:86]); cols != "" {
		f.Columns = strings.Split(cols, ",")
	}
	n, err := recordLength(f.Format)
	f.decodable = err == nil && n == f.Length
	return f
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

func (f Format) message() Message {
	return Message{
		Type: fmtName,
		fields: map[string]float64{
			"Type":   float64(f.Type),
			"Length": float64(f.Length),
		},
		text: map[string]string{
			"Name":    f.Name,
			"Format":  f.Format,
			"Columns": strings.Join(f.Columns, ","),
		},
	}
}

// decode converts a record body (header stripped) into a Message, applying
// the ArduPilot scaling for c/C/e/E/L fields.
func (f Format) decode(body []byte) Message {
	m := Message{Type: f.Name, fields: make(map[string]float64, len(f.Format))}
	le := binary.LittleEndian
	off := 0
	for i := 0; i < len(f.Format); i++ {
		c := f.Format[i]
		b := body[off : off+fieldSize[c]]
		off += len(b)
		name := f.column(i)

		var v float64
		switch c {
		case 'b':
			v = float64(int8(b[0]))
		case 'B', 'M':
			v = float64(b[0])
		case 'h':
			v = float64(int16(le.Uint16(b)))
		case 'H':
			v = float64(le.Uint16(b))
		case 'i':
			v = float64(int32(le.Uint32(b)))
		case 'I':
			v = float64(le.Uint32(b))
		case 'f':
			v = float64(math.Float32frombits(le.Uint32(b)))
		case 'd':
			v = math.Float64frombits(le.Uint64(b))
		case 'c':
			v = float64(int16(le.Uint16(b))) * 0.01
		case 'C':
			v = float64(le.Uint16(b)) * 0.01
		case 'e':
			v = float64(int32(le.Uint32(b))) * 0.01
		case 'E':
			v = float64(le.Uint32(b)) * 0.01
		case 'L':
			v = float64(int32(le.Uint32(b))) * 1e-7
		case 'q':
			v = float64(int64(le.Uint64(b)))
		case 'Q':
			v = float64(le.Uint64(b))
		case 'n', 'N', 'Z':
			m.setText(name, cString(b))
			continue
		case 'a':
			continue
		}
		m.fields[name] = v
	}
	return m
}

// encode appends the record body for values (one per format field).
// String and array fields are zero filled.
func (f Format) encode(dst []byte, values []float64) ([]byte, error) {
	if len(values) != len(f.Format) {
		return nil, fmt.Errorf("dataflash: %s wants %d values, got %d", f.Name, len(f.Format), len(values))
	}
	le := binary.LittleEndian
	for i := 0; i < len(f.Format); i++ {
		v := values[i]
		switch c := f.Format[i]; c {
		case 'b', 'B', 'M':
			dst = append(dst, byte(int64(v)))
		case 'h', 'H':
			dst = le.AppendUint16(dst, uint16(int64(v)))
		case 'i', 'I':
			dst = le.AppendUint32(dst, uint32(int64(v)))
		case 'f':
			dst = le.AppendUint32(dst, math.Float32bits(float32(v)))
		case 'd':
			dst = le.AppendUint64(dst, math.Float64bits(v))
		case 'c', 'C':
			dst = le.AppendUint16(dst, uint16(int64(math.Round(v*100))))
		case 'e', 'E':
			dst = le.AppendUint32(dst, uint32(int64(math.Round(v*100))))
		case 'L':
			dst = le.AppendUint32(dst, uint32(int32(math.Round(v*1e7))))
		case 'q':
			dst = le.AppendUint64(dst, uint64(int64(v)))
		case 'Q':
			dst = le.AppendUint64(dst, uint64(v))
		default:
			dst = append(dst, make([]byte, fieldSize[c])...)
		}
	}
	return dst, nil
}

// encodeFMT returns the full binary FMT record describing f.
func encodeFMT(f Format) []byte {
	b := make([]byte, 0, fmtLength)
	b = append(b, head1, head2, fmtType, f.Type, byte(f.Length))
	b = appendPadded(b, f.Name, 4)
	b = appendPadded(b, f.Format, 16)
	b = appendPadded(b, strings.Join(f.Columns, ","), 64)
	return b
}

func appendPadded(dst []byte, s string, n int) []byte {
	if len(s) > n {
		s = s[:n]
	}
	dst = append(dst, s...)
	return append(dst, make([]byte, n-len(s))...)
}

// fmtSelf describes FMT itself, for writers.
var fmtSelf = Format{
	Type:      fmtType,
	Length:    fmtLength,
	Name:      fmtName,
	Format:    fmtFormat,
	Columns:   []string{"Type", "Length", "Name", "Format", "Columns"},
	decodable: true,
}
