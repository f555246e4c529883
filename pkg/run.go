package readout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EventSink receives every event record of a run next to the CSV channels.
type EventSink interface {
	WriteEvent(record EventRecord) error
	Close() error
}

// SinkFactory opens a sink at the start of a run.
type SinkFactory func(runNumber int) (EventSink, error)

type RunSummary struct {
	RunNumber     int
	Events        int
	EventsWritten int
	TotalDetected int64
}

// RunStore owns the output channels of a run and the run-wide photon count.
//
// RunStore does no locking. RecordEvent, BeginRun, EndRun and Close must not
// be called concurrently; hosts running several lanes funnel their records
// through a single goroutine (see Replay).
type RunStore struct {
	config    Configuration
	factories []SinkFactory
	metrics   *Metrics

	runNumber     int
	writer        *RecordWriter
	sinks         []EventSink
	eventsWritten int
	totalDetected int64
	open          bool
}

func NewRunStore(config Configuration) (*RunStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RunStore{config: config}, nil
}

func (r *RunStore) AddSink(factory SinkFactory) {
	r.factories = append(r.factories, factory)
}

func (r *RunStore) SetMetrics(metrics *Metrics) {
	r.metrics = metrics
}

func (r *RunStore) CountsPath() string {
	return filepath.Join(r.config.OutputDir, r.config.CountsFile)
}

func (r *RunStore) HistogramPath() string {
	return filepath.Join(r.config.OutputDir, r.config.HistFile)
}

// BeginRun opens both channels in append mode, writing their header only if
// the file is new or empty, and then opens the extra sinks. Any failure
// closes what was opened and aborts the run.
func (r *RunStore) BeginRun(runNumber int) error {
	if r.open {
		return fmt.Errorf("run %d is still open", r.runNumber)
	}
	if err := os.MkdirAll(r.config.OutputDir, 0o755); err != nil {
		return &ErrOpenFile{Filename: r.config.OutputDir, Err: err}
	}

	counts, err := openChannel(r.CountsPath(), CountsHeader)
	if err != nil {
		logger.Error(err.Error())
		return err
	}
	hist, err := openChannel(r.HistogramPath(), HistogramHeader)
	if err != nil {
		counts.Close()
		logger.Error(err.Error())
		return err
	}
	r.writer = newRecordWriter(counts, hist)
	r.runNumber = runNumber
	r.eventsWritten = 0
	r.totalDetected = 0
	r.sinks = nil
	r.open = true

	for _, factory := range r.factories {
		sink, err := factory(runNumber)
		if err != nil {
			errMessage := fmt.Errorf("error opening sink for run %d: %w", runNumber, err)
			logger.Error(errMessage.Error())
			return errors.Join(errMessage, r.closeAll())
		}
		r.sinks = append(r.sinks, sink)
	}

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Run %d started. Counts: %s (header written: %t), histograms: %s (header written: %t)",
			runNumber, counts.Filename, counts.headerWritten, hist.Filename, hist.headerWritten)
		logger.Info(message, "run")
	}
	if r.metrics != nil {
		r.metrics.RunsStarted.Inc()
	}
	return nil
}

// RecordEvent writes the record everywhere and adds its detected photons to
// the run total.
func (r *RunStore) RecordEvent(record EventRecord) error {
	if !r.open {
		return fmt.Errorf("event %d recorded outside of a run", record.EventID)
	}
	if err := r.writer.WriteEvent(record); err != nil {
		return err
	}
	for _, sink := range r.sinks {
		if err := sink.WriteEvent(record); err != nil {
			return fmt.Errorf("error writing event %d to sink: %w", record.EventID, err)
		}
	}
	r.eventsWritten++
	r.totalDetected += int64(record.Observables.Detected)
	if r.metrics != nil {
		r.metrics.Observe(record)
	}
	return nil
}

func (r *RunStore) TotalDetected() int64 {
	return r.totalDetected
}

func (r *RunStore) IsOpen() bool {
	return r.open
}

// EndRun flushes and closes every channel and logs the run summary.
func (r *RunStore) EndRun(eventCount int) (RunSummary, error) {
	if !r.open {
		return RunSummary{}, errors.New("no run is open")
	}
	summary := r.summary(eventCount)
	err := errors.Join(r.writer.Flush(), r.closeAll())
	if err != nil {
		logger.Error(fmt.Sprintf("error closing run %d: %v", summary.RunNumber, err))
	}

	logger.Info("=== Run summary ===", "run")
	logger.Info(fmt.Sprintf("Run: %d", summary.RunNumber), "run")
	logger.Info(fmt.Sprintf("Events: %d", summary.Events), "run")
	logger.Info(fmt.Sprintf("Total detected photons: %d", summary.TotalDetected), "run")
	return summary, err
}

// Close releases the channels of an open run without a summary. It is safe
// to call at any time and more than once.
func (r *RunStore) Close() error {
	if !r.open {
		return nil
	}
	return r.closeAll()
}

// WithRun runs body between BeginRun and EndRun. body returns the number of
// events processed. The channels are closed on every way out of body,
// including a panic, which is re-raised afterwards.
func (r *RunStore) WithRun(runNumber int, body func(*RunStore) (int, error)) (RunSummary, error) {
	if err := r.BeginRun(runNumber); err != nil {
		return RunSummary{}, err
	}
	defer func() {
		if r.open {
			if err := r.Close(); err != nil {
				logger.Error(fmt.Sprintf("error closing run %d: %v", runNumber, err))
			}
		}
	}()

	eventCount, err := body(r)
	if err != nil {
		summary := r.summary(eventCount)
		return summary, errors.Join(err, r.Close())
	}
	return r.EndRun(eventCount)
}

func (r *RunStore) summary(eventCount int) RunSummary {
	return RunSummary{
		RunNumber:     r.runNumber,
		Events:        eventCount,
		EventsWritten: r.eventsWritten,
		TotalDetected: r.totalDetected,
	}
}

func (r *RunStore) closeAll() error {
	var errs []error
	if err := r.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing sink: %w", err))
		}
	}
	r.sinks = nil
	r.open = false
	return errors.Join(errs...)
}
