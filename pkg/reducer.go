package readout

import "math"

const (
	ElementaryCharge = 1.602176634e-19 // C
	mmPerCm          = 10.0
	secondsPerNs     = 1e-9

	// Relative slack for (Max-Min)/BinWidth landing next to an integer, as
	// in 0.6/0.1 = 5.999999999999999.
	binEpsilon = 1e-9
)

// TimeWindow is the arrival-time acceptance [Min, Max) and its binning, in ns.
// It is fixed for the whole run.
type TimeWindow struct {
	Min      float64
	Max      float64
	BinWidth float64
}

func (w TimeWindow) Contains(t float64) bool {
	return t >= w.Min && t < w.Max
}

func (w TimeWindow) NumBins() int {
	if !(w.BinWidth > 0) || !(w.Max > w.Min) {
		return 0
	}
	if w.WholeBins() {
		return int(math.Round(w.span()))
	}
	return int(math.Floor(w.span()))
}

// span is the window width in units of bins.
func (w TimeWindow) span() float64 {
	return (w.Max - w.Min) / w.BinWidth
}

// WholeBins reports whether the window is an integer number of bins, so no
// accepted arrival time can fall past the last bin.
func (w TimeWindow) WholeBins() bool {
	n := w.span()
	return math.Abs(n-math.Round(n)) <= binEpsilon*math.Max(1, math.Abs(n))
}

func (w TimeWindow) BinCenter(i int) float64 {
	return w.Min + (float64(i)+0.5)*w.BinWidth
}

// BinIndex returns the bin of t, or false if it falls outside [0, NumBins).
// In a whole-bin window every t inside [Min, Max) has a bin.
func (w TimeWindow) BinIndex(t float64) (int, bool) {
	n := w.NumBins()
	f := math.Floor((t - w.Min) / w.BinWidth)
	if math.IsNaN(f) || f < 0 || n == 0 {
		return 0, false
	}
	if f >= float64(n) {
		if !w.WholeBins() || !w.Contains(t) {
			return 0, false
		}
		f = float64(n - 1)
	}
	return int(f), true
}

// Calibration converts detected photons into a SiPM charge and current.
// Gain and decay time are assumed values, not measured ones.
type Calibration struct {
	Gain      float64
	DecayTime float64 // ns
}

type DerivedObservables struct {
	DEdx     float64 // MeV/cm
	Detected int
	Charge   float64 // C
	Current  float64 // A
}

type HistogramBin struct {
	Index  int
	Center float64 // ns
	Count  int
}

type Histogram struct {
	Window TimeWindow
	Counts []int
}

func NewHistogram(times []float64, window TimeWindow) Histogram {
	h := Histogram{
		Window: window,
		Counts: make([]int, window.NumBins()),
	}
	for _, t := range times {
		if b, ok := window.BinIndex(t); ok {
			h.Counts[b]++
		}
	}
	return h
}

// Bins returns every bin, including empty ones.
func (h Histogram) Bins() []HistogramBin {
	bins := make([]HistogramBin, len(h.Counts))
	for i, count := range h.Counts {
		bins[i] = HistogramBin{Index: i, Center: h.Window.BinCenter(i), Count: count}
	}
	return bins
}

func (h Histogram) Total() int {
	total := 0
	for _, count := range h.Counts {
		total += count
	}
	return total
}

func Reduce(acc *EventAccumulator, calibration Calibration) DerivedObservables {
	detected := acc.DetectedCount()
	obs := DerivedObservables{
		DEdx:     dEdx(acc.MuonEnergy(), acc.MuonPath()),
		Detected: detected,
	}
	obs.Charge = float64(detected) * calibration.Gain * ElementaryCharge
	if calibration.DecayTime > 0 {
		obs.Current = obs.Charge / (calibration.DecayTime * secondsPerNs)
	}
	return obs
}

// dEdx in MeV/cm from MeV and mm. Zero path gives zero.
func dEdx(energy float64, pathMm float64) float64 {
	pathCm := pathMm / mmPerCm
	if pathCm > 0 {
		return energy / pathCm
	}
	return 0
}
