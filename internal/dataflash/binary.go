package dataflash

import "io"

// BinaryReader decodes a binary DataFlash log held in memory.
type BinaryReader struct {
	data    []byte
	off     int
	formats map[byte]Format

	// skipped counts bytes discarded while resynchronising on corrupt data.
	skipped int
}

// NewBinaryReader returns a reader over a complete binary log.
func NewBinaryReader(data []byte) *BinaryReader {
	return &BinaryReader{data: data, formats: make(map[byte]Format)}
}

// Rewind restarts decoding from the first record. Known formats are kept.
func (r *BinaryReader) Rewind() error {
	r.off = 0
	r.skipped = 0
	return nil
}

// Skipped returns the number of bytes discarded since the last Rewind.
func (r *BinaryReader) Skipped() int { return r.skipped }

func (r *BinaryReader) Close() error { return nil }

func (r *BinaryReader) Next(types ...string) (Message, error) {
	for {
		if r.off+3 > len(r.data) {
			return Message{}, io.EOF
		}
		if r.data[r.off] != head1 || r.data[r.off+1] != head2 {
			r.resync()
			continue
		}

		typ := r.data[r.off+2]
		if typ == fmtType {
			if r.off+fmtLength > len(r.data) {
				return Message{}, io.EOF
			}
			f := parseFMT(r.data[r.off+3 : r.off+fmtLength])
			r.formats[f.Type] = f
			r.off += fmtLength
			if wanted(types, fmtName) {
				return f.message(), nil
			}
			continue
		}

		f, ok := r.formats[typ]
		if !ok || f.Length < 3 {
			r.resync()
			continue
		}
		if r.off+f.Length > len(r.data) {
			// Truncated final record, typical of a log cut off mid-write.
			return Message{}, io.EOF
		}
		body := r.data[r.off+3 : r.off+f.Length]
		r.off += f.Length
		if !f.decodable || !wanted(types, f.Name) {
			continue
		}
		return f.decode(body), nil
	}
}

func (r *BinaryReader) resync() {
	r.off++
	r.skipped++
}
