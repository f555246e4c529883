package readout

import (
	"errors"
	"fmt"
	"strconv"
)

// Keep these in sync with eventRow and histogramRows.
var CountsHeader = []string{
	"event_id",
	"muon_path_mm",
	"muon_dEdx_MeV_per_cm",
	"photons_produced",
	"photons_arrived_window",
	"photons_detected",
	"sipm_charge_C",
	"sipm_est_current_A",
}

var HistogramHeader = []string{"event_id", "bin_ns", "count"}

// RecordWriter appends event records to the per-event and histogram channels.
type RecordWriter struct {
	counts *csvChannel
	hist   *csvChannel
}

func newRecordWriter(counts *csvChannel, hist *csvChannel) *RecordWriter {
	return &RecordWriter{counts: counts, hist: hist}
}

// WriteEvent writes one per-event row and one row per histogram bin,
// empty bins included, so every event has the same bin grid.
func (w *RecordWriter) WriteEvent(record EventRecord) error {
	if err := w.counts.Write(eventRow(record)); err != nil {
		return fmt.Errorf("error writing event %d to %s: %w", record.EventID, w.counts.Filename, err)
	}
	for _, row := range histogramRows(record) {
		if err := w.hist.Write(row); err != nil {
			return fmt.Errorf("error writing histogram of event %d to %s: %w", record.EventID, w.hist.Filename, err)
		}
	}
	return nil
}

// Flush pushes buffered rows of both channels to disk.
func (w *RecordWriter) Flush() error {
	var errs []error
	if err := w.counts.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("error flushing %s: %w", w.counts.Filename, err))
	}
	if err := w.hist.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("error flushing %s: %w", w.hist.Filename, err))
	}
	return errors.Join(errs...)
}

func (w *RecordWriter) Close() error {
	var errs []error
	if err := w.counts.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing %s: %w", w.counts.Filename, err))
	}
	if err := w.hist.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing %s: %w", w.hist.Filename, err))
	}
	return errors.Join(errs...)
}

func eventRow(record EventRecord) []string {
	obs := record.Observables
	return []string{
		strconv.Itoa(record.EventID),
		formatFloat(record.MuonPath),
		formatFloat(obs.DEdx),
		strconv.Itoa(record.PhotonsProduced),
		strconv.Itoa(record.PhotonsArrived),
		strconv.Itoa(obs.Detected),
		formatFloat(obs.Charge),
		formatFloat(obs.Current),
	}
}

func histogramRows(record EventRecord) [][]string {
	eventID := strconv.Itoa(record.EventID)
	bins := record.Histogram.Bins()
	rows := make([][]string, len(bins))
	for i, bin := range bins {
		rows[i] = []string{eventID, formatFloat(bin.Center), strconv.Itoa(bin.Count)}
	}
	return rows
}

// Shortest representation that parses back to the same float64.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
