package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avoidance-eval/internal/experiment"
	"avoidance-eval/internal/proximity"
)

func sampleReport() experiment.Report {
	return experiment.Report{
		Experiment:  "experiments/experiment_3",
		TimeDeltaUS: 50_000,
		Vehicles: map[int]map[int]proximity.Approach{
			0: {},
			1: {0: {DistanceM: 11.13, TimeUS: 0}},
			2: {0: {DistanceM: 40, TimeUS: 2_500_000}, 1: {DistanceM: 7.5, TimeUS: 1_250_000}},
			3: {1: {DistanceM: 20, TimeUS: 3_000_000}},
		},
		Stats: experiment.SweepStats{Rounds: 12, MaxRounds: 14, Taken: 40, Comparisons: 60, Exhausted: true, ExhaustedVehicle: 3},
	}
}

func TestUnorderedKeepsSmallerDirection(t *testing.T) {
	r := sampleReport()
	r.Vehicles[0][1] = proximity.Approach{DistanceM: 9, TimeUS: 40_000}

	got := Unordered(r)
	want := []PairDistance{
		{A: 0, B: 1, DistanceM: 9, TimeUS: 40_000},
		{A: 0, B: 2, DistanceM: 40, TimeUS: 2_500_000},
		{A: 1, B: 2, DistanceM: 7.5, TimeUS: 1_250_000},
		{A: 1, B: 3, DistanceM: 20, TimeUS: 3_000_000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Unordered() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleReport())
	assert.Equal(t, 4, s.Vehicles)
	assert.Equal(t, 4, s.Pairs)
	assert.Equal(t, 7.5, s.MinM)
	assert.Equal(t, 40.0, s.MaxM)
	assert.InDelta(t, (11.13+40+7.5+20)/4, s.MeanM, 1e-9)
	assert.Greater(t, s.StdDevM, 0.0)
	assert.Equal(t, PairDistance{A: 1, B: 2, DistanceM: 7.5, TimeUS: 1_250_000}, s.Closest)

	empty := Summarize(experiment.Report{Vehicles: map[int]map[int]proximity.Approach{0: {}}})
	assert.Equal(t, 0, empty.Pairs)
	assert.Equal(t, 1, empty.Vehicles)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "vehicle 1 got within 11.13 m of vehicle 0 at t=0.000s", lines[0])
	assert.Equal(t, "vehicle 2 got within 7.50 m of vehicle 1 at t=1.250s", lines[2])
	assert.Contains(t, lines[4], "closest 7.50 m (vehicles 1 and 2)")
	assert.Equal(t, "sweep: 12/14 rounds, 40 samples, 60 comparisons, 0 skipped; vehicle 3 out of samples", lines[5])
}

func TestWriteTextAmbiguousLogs(t *testing.T) {
	r := sampleReport()
	r.AmbiguousLogs = map[int][]string{2: {"logs/00000001.BIN", "logs/00000002.BIN"}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "vehicle 2: 2 matching logs, used logs/00000002.BIN", lines[5])
}

func TestWriteTextNoApproaches(t *testing.T) {
	var buf bytes.Buffer
	r := experiment.Report{Vehicles: map[int]map[int]proximity.Approach{0: {}, 1: {}}}
	require.NoError(t, WriteText(&buf, r))
	assert.Contains(t, buf.String(), "2 vehicles, no approaches within the time window")
	assert.Contains(t, buf.String(), "round limit reached")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var got struct {
		Experiment string                             `json:"experiment"`
		Vehicles   map[int]map[int]proximity.Approach `json:"vehicles"`
		Stats      experiment.SweepStats              `json:"stats"`
		Summary    Summary                            `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "experiments/experiment_3", got.Experiment)
	assert.Equal(t, 11.13, got.Vehicles[1][0].DistanceM)
	assert.Empty(t, got.Vehicles[0])
	assert.Equal(t, 12, got.Stats.Rounds)
	assert.Equal(t, 7.5, got.Summary.MinM)
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closest.png")
	require.NoError(t, SavePlot(path, sampleReport()))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, "\x89PNG", string(b[:4]))

	err = SavePlot(filepath.Join(t.TempDir(), "empty.png"), experiment.Report{})
	assert.ErrorIs(t, err, errNoPairs)
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "1-2")
	assert.Contains(t, out, "7.50")

	assert.ErrorIs(t, WriteHTML(&buf, experiment.Report{}), errNoPairs)
}
