package readout

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBody = errors.New("body failed")

const countsHeaderLine = "event_id,muon_path_mm,muon_dEdx_MeV_per_cm,photons_produced," +
	"photons_arrived_window,photons_detected,sipm_charge_C,sipm_est_current_A"

// testRecord builds the record of an event where the muon crosses 100 mm of
// rod depositing 20 MeV and the given photons are detected.
func testRecord(config Configuration, eventID int, detectionTimes ...float64) EventRecord {
	lane := NewLane(0, config)
	lane.BeginEvent(eventID)
	lane.OnStep(muonStep(config.ActiveVolume, 100, 20), nil)
	for _, time := range detectionTimes {
		lane.OnTrackCreated(OpticalPhoton, config.ScintProcess)
		lane.OnStep(photonStep(config.WindowVolume, GeomBoundary, time), BoundaryOutcome(FresnelRefraction))
		lane.OnStep(photonStep("SiPMPhotocathodeLV", GeomBoundary, time), BoundaryOutcome(Detection))
	}
	return lane.EndEvent()
}

func writeEvents(records ...EventRecord) func(*RunStore) (int, error) {
	return func(store *RunStore) (int, error) {
		for i, record := range records {
			if err := store.RecordEvent(record); err != nil {
				return i, err
			}
		}
		return len(records), nil
	}
}

func readCSV(t *testing.T, filename string) [][]string {
	t.Helper()
	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func countHeaders(t *testing.T, filename string, header string) int {
	t.Helper()
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if line == header {
			n++
		}
	}
	return n
}

func TestRunWritesRows(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	summary, err := store.WithRun(7, writeEvents(
		testRecord(config, 0, 5, 5, 150.5),
		testRecord(config, 1),
	))
	require.NoError(t, err)
	assert.Equal(t, RunSummary{RunNumber: 7, Events: 2, EventsWritten: 2, TotalDetected: 3}, summary)
	assert.False(t, store.IsOpen())

	counts := readCSV(t, store.CountsPath())
	require.Len(t, counts, 3)
	assert.Equal(t, CountsHeader, counts[0])
	assert.Equal(t, []string{"0", "100", "2", "3", "3", "3"}, counts[1][:6])
	assert.Equal(t, []string{"1", "100", "2", "0", "0", "0", "0", "0"}, counts[2])

	hist := readCSV(t, store.HistogramPath())
	numBins := config.Window().NumBins()
	require.Len(t, hist, 1+2*numBins)
	assert.Equal(t, HistogramHeader, hist[0])
	assert.Equal(t, []string{"0", "0.5", "0"}, hist[1])
	assert.Equal(t, []string{"0", "5.5", "2"}, hist[1+5])
	assert.Equal(t, []string{"0", "150.5", "1"}, hist[1+150])
	assert.Equal(t, []string{"1", "199.5", "0"}, hist[2*numBins])

	total := 0
	for _, row := range hist[1 : 1+numBins] {
		count, err := strconv.Atoi(row[2])
		require.NoError(t, err)
		total += count
	}
	assert.Equal(t, 3, total)
}

func TestHeaderWrittenOnce(t *testing.T) {
	config := testConfiguration(t)

	for run := 1; run <= 3; run++ {
		// A new store per run, as a new process would do.
		store, err := NewRunStore(config)
		require.NoError(t, err)
		_, err = store.WithRun(run, writeEvents(testRecord(config, 0, 10)))
		require.NoError(t, err)
	}

	store, err := NewRunStore(config)
	require.NoError(t, err)
	assert.Equal(t, 1, countHeaders(t, store.CountsPath(), countsHeaderLine))
	assert.Equal(t, 1, countHeaders(t, store.HistogramPath(), "event_id,bin_ns,count"))

	counts := readCSV(t, store.CountsPath())
	assert.Len(t, counts, 1+3)
	hist := readCSV(t, store.HistogramPath())
	assert.Len(t, hist, 1+3*config.Window().NumBins())
}

func TestHeaderWrittenOnceWithinProcess(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	for run := 0; run < 2; run++ {
		_, err := store.WithRun(run, writeEvents(testRecord(config, 0)))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countHeaders(t, store.CountsPath(), countsHeaderLine))
}

func TestHeaderWrittenToEmptyFile(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.CountsPath(), nil, 0o644))

	_, err = store.WithRun(0, writeEvents(testRecord(config, 0)))
	require.NoError(t, err)

	counts := readCSV(t, store.CountsPath())
	require.Len(t, counts, 2)
	assert.Equal(t, CountsHeader, counts[0])
}

func TestHeaderNotWrittenToNonEmptyFile(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)
	existing := "event_id,something_else\n"
	require.NoError(t, os.WriteFile(store.CountsPath(), []byte(existing), 0o644))

	_, err = store.WithRun(0, writeEvents(testRecord(config, 4)))
	require.NoError(t, err)

	data, err := os.ReadFile(store.CountsPath())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), existing))
	assert.Zero(t, countHeaders(t, store.CountsPath(), countsHeaderLine))
}

func TestRunAccumulatesDetected(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	require.NoError(t, store.BeginRun(1))
	for i, times := range [][]float64{{1, 2}, {}, {3, 4, 5, 300}} {
		require.NoError(t, store.RecordEvent(testRecord(config, i, times...)))
	}
	assert.EqualValues(t, 5, store.TotalDetected())

	summary, err := store.EndRun(3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, summary.TotalDetected)

	// The next run starts from zero.
	require.NoError(t, store.BeginRun(2))
	assert.Zero(t, store.TotalDetected())
	require.NoError(t, store.Close())
}

func TestFlushDuringRun(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	require.NoError(t, store.BeginRun(1))
	require.NoError(t, store.RecordEvent(testRecord(config, 0, 3)))
	require.NoError(t, store.writer.Flush())

	// Rows are on disk before the run ends.
	assert.Len(t, readCSV(t, store.CountsPath()), 2)
	assert.Len(t, readCSV(t, store.HistogramPath()), 1+config.Window().NumBins())

	_, err = store.EndRun(1)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, store.CountsPath()), 2)
}

func TestRunClosedOnError(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	summary, err := store.WithRun(3, func(store *RunStore) (int, error) {
		if err := store.RecordEvent(testRecord(config, 0, 1)); err != nil {
			return 0, err
		}
		return 1, errBody
	})
	require.ErrorIs(t, err, errBody)
	assert.False(t, store.IsOpen())
	assert.Equal(t, 1, summary.EventsWritten)

	// What was written before the failure is on disk.
	counts := readCSV(t, store.CountsPath())
	assert.Len(t, counts, 2)
}

func TestRunClosedOnPanic(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	assert.PanicsWithValue(t, "lane crashed", func() {
		store.WithRun(3, func(store *RunStore) (int, error) {
			if err := store.RecordEvent(testRecord(config, 0, 1)); err != nil {
				return 0, err
			}
			panic("lane crashed")
		})
	})
	assert.False(t, store.IsOpen())

	counts := readCSV(t, store.CountsPath())
	assert.Len(t, counts, 2)

	// The store can be used again after the panic.
	_, err = store.WithRun(4, writeEvents(testRecord(config, 0)))
	require.NoError(t, err)
	assert.Equal(t, 1, countHeaders(t, store.CountsPath(), countsHeaderLine))
}

func TestRecordOutsideRun(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	assert.Error(t, store.RecordEvent(testRecord(config, 0)))
	_, err = store.EndRun(0)
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestBeginRunTwice(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	require.NoError(t, store.BeginRun(1))
	assert.Error(t, store.BeginRun(2))
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestRunStoreRejectsConfig(t *testing.T) {
	config := testConfiguration(t)
	config.BinWidth = 0

	store, err := NewRunStore(config)
	assert.Nil(t, store)
	var invalid *ErrInvalidConfig
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bin_width_ns", invalid.Field)
}

func TestBeginRunOpenFailure(t *testing.T) {
	t.Run("output dir is a file", func(t *testing.T) {
		config := testConfiguration(t)
		config.OutputDir = filepath.Join(config.OutputDir, "not_a_dir")
		require.NoError(t, os.WriteFile(config.OutputDir, []byte("x"), 0o644))

		store, err := NewRunStore(config)
		require.NoError(t, err)
		err = store.BeginRun(0)
		var openErr *ErrOpenFile
		require.ErrorAs(t, err, &openErr)
		assert.False(t, store.IsOpen())
	})

	t.Run("counts file is a directory", func(t *testing.T) {
		config := testConfiguration(t)
		require.NoError(t, os.Mkdir(filepath.Join(config.OutputDir, config.CountsFile), 0o755))

		store, err := NewRunStore(config)
		require.NoError(t, err)
		err = store.BeginRun(0)
		var openErr *ErrOpenFile
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, store.CountsPath(), openErr.Filename)
		assert.False(t, store.IsOpen())
	})

	t.Run("histogram file is a directory", func(t *testing.T) {
		config := testConfiguration(t)
		require.NoError(t, os.Mkdir(filepath.Join(config.OutputDir, config.HistFile), 0o755))

		store, err := NewRunStore(config)
		require.NoError(t, err)
		_, err = store.WithRun(0, writeEvents())
		var openErr *ErrOpenFile
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, store.HistogramPath(), openErr.Filename)
		assert.False(t, store.IsOpen())
	})
}

type recordingSink struct {
	events []int
	closed bool
	err    error
}

func (s *recordingSink) WriteEvent(record EventRecord) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, record.EventID)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestRunSinks(t *testing.T) {
	config := testConfiguration(t)
	store, err := NewRunStore(config)
	require.NoError(t, err)

	sinks := map[int]*recordingSink{}
	store.AddSink(func(runNumber int) (EventSink, error) {
		sink := &recordingSink{}
		sinks[runNumber] = sink
		return sink, nil
	})

	_, err = store.WithRun(9, writeEvents(testRecord(config, 0), testRecord(config, 1), testRecord(config, 2)))
	require.NoError(t, err)

	require.Contains(t, sinks, 9)
	if diff := cmp.Diff([]int{0, 1, 2}, sinks[9].events); diff != "" {
		t.Errorf("sink events mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, sinks[9].closed)
}

func TestRunSinkFailures(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		config := testConfiguration(t)
		store, err := NewRunStore(config)
		require.NoError(t, err)

		first := &recordingSink{}
		store.AddSink(func(int) (EventSink, error) { return first, nil })
		store.AddSink(func(int) (EventSink, error) { return nil, errBody })

		require.ErrorIs(t, store.BeginRun(0), errBody)
		assert.False(t, store.IsOpen())
		assert.True(t, first.closed)
	})

	t.Run("write", func(t *testing.T) {
		config := testConfiguration(t)
		store, err := NewRunStore(config)
		require.NoError(t, err)

		sink := &recordingSink{err: errBody}
		store.AddSink(func(int) (EventSink, error) { return sink, nil })

		summary, err := store.WithRun(0, writeEvents(testRecord(config, 0, 1)))
		require.ErrorIs(t, err, errBody)
		assert.Zero(t, summary.EventsWritten)
		assert.True(t, sink.closed)
		assert.False(t, store.IsOpen())
	})
}
