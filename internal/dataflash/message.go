package dataflash

// Message is one decoded log record.
type Message struct {
	Type   string
	fields map[string]float64
	text   map[string]string
}

// NewMessage builds a message from numeric fields. Mostly useful for tests and
// for sources that are not backed by a log file.
func NewMessage(typ string, fields map[string]float64) Message {
	m := Message{Type: typ, fields: make(map[string]float64, len(fields))}
	for k, v := range fields {
		m.fields[k] = v
	}
	return m
}

// Float returns a numeric field. Scaled fields (lat/lon, centi-units) are
// already converted to their natural units.
func (m Message) Float(name string) (float64, bool) {
	v, ok := m.fields[name]
	return v, ok
}

// String returns a text field (n/N/Z format characters).
func (m Message) String(name string) (string, bool) {
	v, ok := m.text[name]
	return v, ok
}

// TimeUS returns the record timestamp in microseconds. Older logs only carry
// TimeMS, which is scaled up.
func (m Message) TimeUS() (int64, bool) {
	if v, ok := m.fields["TimeUS"]; ok {
		return int64(v), true
	}
	if v, ok := m.fields["TimeMS"]; ok {
		return int64(v) * 1000, true
	}
	return 0, false
}

func (m *Message) setText(name, v string) {
	if m.text == nil {
		m.text = make(map[string]string)
	}
	m.text[name] = v
}

func wanted(types []string, name string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == name {
			return true
		}
	}
	return false
}
