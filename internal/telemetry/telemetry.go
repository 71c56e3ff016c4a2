// Package telemetry turns a vehicle's decoded log into a time-ordered sample
// sequence and exposes it through a one-directional cursor.
package telemetry

import (
	"errors"
	"fmt"
	"io"

	"avoidance-eval/internal/dataflash"
	"avoidance-eval/internal/geo"
)

// GroundTruthType is the simulator state message. GPS messages carry injected
// sensor error and are never used for separation.
const GroundTruthType = "SIM"

// ErrOutOfSamples is returned when peeking past the end of a cursor.
var ErrOutOfSamples = errors.New("out of samples")

// Sample is one ground-truth position report.
type Sample struct {
	TimeUS   int64        `json:"time_us"`
	Position geo.Position `json:"position"`
}

// Source is the part of dataflash.Source the extractor needs.
type Source interface {
	Rewind() error
	Next(types ...string) (dataflash.Message, error)
}

// Extract reads every message of msgType (GroundTruthType when empty) from
// src, in log order. The source is rewound first, so repeated calls return the
// same sequence regardless of what else consumed src.
func Extract(src Source, msgType string) ([]Sample, error) {
	if msgType == "" {
		msgType = GroundTruthType
	}
	if err := src.Rewind(); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}

	out := make([]Sample, 0, 1024)
	for {
		m, err := src.Next(msgType)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		s, err := sampleFrom(m)
		if err != nil {
			return nil, fmt.Errorf("%s message %d: %w", msgType, len(out), err)
		}
		out = append(out, s)
	}
}

func sampleFrom(m dataflash.Message) (Sample, error) {
	ts, ok := m.TimeUS()
	if !ok {
		return Sample{}, errors.New("missing TimeUS")
	}
	lat, ok := m.Float("Lat")
	if !ok {
		return Sample{}, errors.New("missing Lat")
	}
	lon, ok := m.Float("Lng")
	if !ok {
		return Sample{}, errors.New("missing Lng")
	}
	alt, ok := m.Float("Alt")
	if !ok {
		return Sample{}, errors.New("missing Alt")
	}
	return Sample{TimeUS: ts, Position: geo.Position{LatDeg: lat, LonDeg: lon, AltM: alt}}, nil
}
