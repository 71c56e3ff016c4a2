package dataflash

import (
	"bytes"
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func simValues(timeUS int64, lat, lon, alt float64) []float64 {
	return []float64{float64(timeUS), 1.5, -2.25, 90, alt, lat, lon, 1, 0, 0, 0}
}

var gpsFormat = MustFormat(0x82, "GPS", "QBIHBcLLeffffB",
	"TimeUS", "Status", "GMS", "GWk", "NSats", "HDop", "Lat", "Lng", "Alt", "Spd", "GCrs", "VZ", "Yaw", "U")

func writeLog(t *testing.T, binary bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, binary)
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := w.Define(SIMFormat); err != nil {
		t.Fatalf("Define(SIM) error: %v", err)
	}
	if err := w.Define(gpsFormat); err != nil {
		t.Fatalf("Define(GPS) error: %v", err)
	}
	if err := w.Write("SIM", simValues(1000, -35.3632621, 149.1652374, 584.25)...); err != nil {
		t.Fatalf("Write(SIM) error: %v", err)
	}
	gps := []float64{1500, 3, 0, 0, 10, 0.8, -35.36, 149.16, 590, 0, 0, 0, 0, 1}
	if err := w.Write("GPS", gps...); err != nil {
		t.Fatalf("Write(GPS) error: %v", err)
	}
	if err := w.Write("SIM", simValues(2000, -35.3632000, 149.1653000, 600)...); err != nil {
		t.Fatalf("Write(SIM) error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, src Source, types ...string) []Message {
	t.Helper()
	var out []Message
	for {
		m, err := src.Next(types...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, m)
	}
}

func checkSIM(t *testing.T, msgs []Message, tol float64) {
	t.Helper()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 SIM messages, got %d", len(msgs))
	}
	ts, ok := msgs[0].TimeUS()
	if !ok || ts != 1000 {
		t.Fatalf("TimeUS=%d ok=%v want 1000", ts, ok)
	}
	lat, _ := msgs[0].Float("Lat")
	lng, _ := msgs[0].Float("Lng")
	alt, _ := msgs[0].Float("Alt")
	if math.Abs(lat+35.3632621) > tol || math.Abs(lng-149.1652374) > tol {
		t.Fatalf("lat/lng=%v,%v", lat, lng)
	}
	if math.Abs(alt-584.25) > 1e-3 {
		t.Fatalf("alt=%v want 584.25", alt)
	}
	roll, _ := msgs[0].Float("Roll")
	if math.Abs(roll-1.5) > 1e-9 {
		t.Fatalf("roll=%v want 1.5", roll)
	}
	ts, _ = msgs[1].TimeUS()
	if ts != 2000 {
		t.Fatalf("second TimeUS=%d want 2000", ts)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	r := NewBinaryReader(writeLog(t, true))
	checkSIM(t, readAll(t, r, "SIM"), 1e-7)
	if r.Skipped() != 0 {
		t.Fatalf("skipped=%d want 0", r.Skipped())
	}
}

func TestTextRoundTrip(t *testing.T) {
	r := NewTextReader(bytes.NewReader(writeLog(t, false)))
	checkSIM(t, readAll(t, r, "SIM"), 1e-12)
}

func TestRewindRestartsStream(t *testing.T) {
	for _, binary := range []bool{true, false} {
		data := writeLog(t, binary)
		var src Source
		if binary {
			src = NewBinaryReader(data)
		} else {
			src = NewTextReader(bytes.NewReader(data))
		}
		if _, err := src.Next("SIM"); err != nil {
			t.Fatalf("binary=%v Next() error: %v", binary, err)
		}
		if err := src.Rewind(); err != nil {
			t.Fatalf("binary=%v Rewind() error: %v", binary, err)
		}
		if got := len(readAll(t, src, "SIM")); got != 2 {
			t.Fatalf("binary=%v after rewind got %d SIM messages want 2", binary, got)
		}
	}
}

func TestNext_NoFilterReturnsEverything(t *testing.T) {
	msgs := readAll(t, NewBinaryReader(writeLog(t, true)))
	var types []string
	for _, m := range msgs {
		types = append(types, m.Type)
	}
	want := "FMT,FMT,FMT,SIM,GPS,SIM"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("types=%s want %s", got, want)
	}
	name, _ := msgs[1].String("Name")
	if name != "SIM" {
		t.Fatalf("FMT name=%q want SIM", name)
	}
}

func TestBinaryReader_ResyncsOverGarbage(t *testing.T) {
	data := append([]byte{0x00, 0xA3, 0x01, 0xFF}, writeLog(t, true)...)
	// Truncated trailing record.
	data = append(data, head1, head2, SIMFormat.Type, 0x01, 0x02)

	r := NewBinaryReader(data)
	checkSIM(t, readAll(t, r, "SIM"), 1e-7)
	if r.Skipped() != 4 {
		t.Fatalf("skipped=%d want 4", r.Skipped())
	}
}

func TestTextReader_InvalidValue(t *testing.T) {
	in := strings.NewReader(`
# comment
FMT, 150, 45, SIM, QccCfLLffff, TimeUS,Roll,Pitch,Yaw,Alt,Lat,Lng,Q1,Q2,Q3,Q4
SIM, 100, 0, 0, 0, 10, 1.5, 2.5, 1, 0, 0, 0
SIM, nope, 0, 0, 0, 10, 1.5, 2.5, 1, 0, 0, 0
`)
	r := NewTextReader(in)
	m, err := r.Next("SIM")
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if lat, _ := m.Float("Lat"); lat != 1.5 {
		t.Fatalf("lat=%v want 1.5", lat)
	}
	_, err = r.Next("SIM")
	if err == nil || !strings.Contains(err.Error(), "line 5") {
		t.Fatalf("expected line 5 error, got %v", err)
	}
}

func TestTextReader_SkipsUndefinedTypes(t *testing.T) {
	in := strings.NewReader("XYZ, 1, 2\nFMT, 1, 11, ABC, Q, TimeUS\nABC, 42\n")
	msgs := readAll(t, NewTextReader(in), "ABC", "XYZ")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if ts, _ := msgs[0].TimeUS(); ts != 42 {
		t.Fatalf("TimeUS=%d want 42", ts)
	}
}

func TestOpen_SelectsReaderBySuffix(t *testing.T) {
	tmp := t.TempDir()
	for _, name := range []string{"00000001.BIN", "flight.bin", "flight.log"} {
		path := filepath.Join(tmp, name)
		w, err := CreateWriter(path)
		if err != nil {
			t.Fatalf("CreateWriter(%s) error: %v", name, err)
		}
		if err := w.Define(SIMFormat); err != nil {
			t.Fatalf("Define() error: %v", err)
		}
		if err := w.Write("SIM", simValues(1000, -35.3632621, 149.1652374, 584.25)...); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		if err := w.Write("SIM", simValues(2000, -35.3632, 149.1653, 600)...); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}

		src, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%s) error: %v", name, err)
		}
		_, isBinary := src.(*BinaryReader)
		if isBinary != IsBinaryPath(path) {
			t.Fatalf("%s: binary reader=%v", name, isBinary)
		}
		checkSIM(t, readAll(t, src, "SIM"), 1e-7)
		if err := src.Close(); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
	}
}

func TestWriter_RejectsUnknownAndClosed(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, true)
	if err != nil {
		t.Fatalf("NewWriter() error: %v", err)
	}
	if err := w.Write("SIM", simValues(0, 0, 0, 0)...); err == nil {
		t.Fatalf("expected error for undefined format")
	}
	if err := w.Define(SIMFormat); err != nil {
		t.Fatalf("Define() error: %v", err)
	}
	if err := w.Write("SIM", 1, 2); err == nil {
		t.Fatalf("expected error for short value list")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Write("SIM", simValues(0, 0, 0, 0)...); err == nil {
		t.Fatalf("expected error after Close")
	}
}

func TestNewFormat_Validation(t *testing.T) {
	if _, err := NewFormat(1, "SIM", "Qx", "TimeUS", "X"); err == nil {
		t.Fatalf("expected error for unknown format character")
	}
	if _, err := NewFormat(1, "SIM", "QQ", "TimeUS"); err == nil {
		t.Fatalf("expected error for column count mismatch")
	}
	if SIMFormat.Length != 45 {
		t.Fatalf("SIM length=%d want 45", SIMFormat.Length)
	}
}
