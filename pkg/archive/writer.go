// Package archive stores the records of a run in a single HDF5 file:
//
//	/Run/runInfo           run number and time window
//	/Run/events            one row of derived observables per event
//	/Histograms/bins       bin index and centre (ns)
//	/Histograms/edges      1 x (bins+1) bin edges (ns)
//	/Histograms/counts     event x bin detected-photon counts
package archive

import (
	"errors"
	"fmt"
	"path/filepath"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	readout "github.com/next-exp/muonbar_go/pkg"
)

type Archive struct {
	File         *hdf5.File
	Filename     string
	RunGroup     *hdf5.Group
	HistGroup    *hdf5.Group
	EventTable   *hdf5.Dataset
	RunInfoTable *hdf5.Dataset
	BinsTable    *hdf5.Dataset
	Edges        *hdf5.Dataset
	Counts       *hdf5.Dataset
	NBins        int
	EvtCounter   int
}

// NewArchive creates (or truncates) filename and writes the run header.
// On error everything created so far is closed.
func NewArchive(filename string, runNumber int, window readout.TimeWindow, compressionLevel int) (archive *Archive, err error) {
	a := &Archive{Filename: filename, NBins: window.NumBins()}
	if a.NBins < 1 {
		return nil, &readout.ErrInvalidConfig{Field: "bin_width_ns", Reason: "window has no bins"}
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if a.RunGroup, err = createGroup(a.File, "Run"); err != nil {
		return nil, err
	}
	if a.HistGroup, err = createGroup(a.File, "Histograms"); err != nil {
		return nil, err
	}
	if a.RunInfoTable, err = createTable(a.RunGroup, "runInfo", RunInfoHDF5{}, compressionLevel); err != nil {
		return nil, err
	}
	if a.EventTable, err = createTable(a.RunGroup, "events", EventDataHDF5{}, compressionLevel); err != nil {
		return nil, err
	}
	if a.BinsTable, err = createTable(a.HistGroup, "bins", BinHDF5{}, compressionLevel); err != nil {
		return nil, err
	}
	if a.Edges, err = create2dArray(a.HistGroup, "edges", hdf5.T_NATIVE_DOUBLE, a.NBins+1, compressionLevel); err != nil {
		return nil, err
	}
	if a.Counts, err = create2dArray(a.HistGroup, "counts", hdf5.T_NATIVE_INT32, a.NBins, compressionLevel); err != nil {
		return nil, err
	}

	runInfo := RunInfoHDF5{
		run_number: int32(runNumber),
		t_min:      window.Min,
		t_max:      window.Max,
		bin_width:  window.BinWidth,
	}
	if err = writeEntryToTable(a.RunInfoTable, runInfo, 0); err != nil {
		return nil, fmt.Errorf("error writing run info: %w", err)
	}

	// The array MUST be allocated at creation, if not, HDF5 will panic
	bins := make([]BinHDF5, a.NBins)
	for i := range bins {
		bins[i] = BinHDF5{bin: int32(i), center: window.BinCenter(i)}
	}
	if err = writeArrayToTable(a.BinsTable, &bins, 0); err != nil {
		return nil, fmt.Errorf("error writing histogram bins: %w", err)
	}

	edges := make([]float64, a.NBins+1)
	for i := range edges {
		edges[i] = window.Min + float64(i)*window.BinWidth
	}
	if err = write2dArray(a.Edges, &edges, 0, a.NBins+1); err != nil {
		return nil, fmt.Errorf("error writing histogram edges: %w", err)
	}
	return a, nil
}

// Sink opens one archive per run as run_<N>.h5 in dir.
func Sink(dir string, window readout.TimeWindow, compressionLevel int) readout.SinkFactory {
	return func(runNumber int) (readout.EventSink, error) {
		filename := filepath.Join(dir, fmt.Sprintf("run_%d.h5", runNumber))
		return NewArchive(filename, runNumber, window, compressionLevel)
	}
}

func (a *Archive) WriteEvent(record readout.EventRecord) error {
	obs := record.Observables
	entry := EventDataHDF5{
		evt_number: int32(record.EventID),
		muon_path:  record.MuonPath,
		muon_dedx:  obs.DEdx,
		produced:   int32(record.PhotonsProduced),
		arrived:    int32(record.PhotonsArrived),
		detected:   int32(obs.Detected),
		charge:     obs.Charge,
		current:    obs.Current,
	}
	if err := writeEntryToTable(a.EventTable, entry, a.EvtCounter); err != nil {
		return fmt.Errorf("error writing event %d: %w", record.EventID, err)
	}

	counts := make([]int32, a.NBins)
	for i, count := range record.Histogram.Counts {
		if i < a.NBins {
			counts[i] = int32(count)
		}
	}
	if err := write2dArray(a.Counts, &counts, a.EvtCounter, a.NBins); err != nil {
		return fmt.Errorf("error writing histogram of event %d: %w", record.EventID, err)
	}

	a.EvtCounter++
	return nil
}

func (a *Archive) Close() error {
	var errs []error

	datasets := []struct {
		name string
		dset *hdf5.Dataset
	}{
		{"event table", a.EventTable},
		{"run info table", a.RunInfoTable},
		{"bins table", a.BinsTable},
		{"histogram edges", a.Edges},
		{"histogram counts", a.Counts},
	}
	for _, d := range datasets {
		if d.dset == nil {
			continue
		}
		if err := d.dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}
	if a.RunGroup != nil {
		if err := a.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if a.HistGroup != nil {
		if err := a.HistGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing histograms group: %w", err))
		}
	}
	if a.File != nil {
		if err := a.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}
	a.EventTable, a.RunInfoTable, a.BinsTable, a.Edges, a.Counts = nil, nil, nil, nil, nil
	a.RunGroup, a.HistGroup, a.File = nil, nil, nil

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
