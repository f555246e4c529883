package readout

// EventAccumulator holds the state of the event being transported on one
// lane. It is not safe for concurrent use; each lane owns its own.
type EventAccumulator struct {
	window TimeWindow

	eventID         int
	muonPath        float64 // mm
	muonEnergy      float64 // MeV
	photonsProduced int
	photonsArrived  int
	arrivalTimes    []float64 // ns, inside window only
}

func NewEventAccumulator(window TimeWindow) *EventAccumulator {
	return &EventAccumulator{window: window}
}

// Reset must be called before the first notification of a new event.
func (a *EventAccumulator) Reset(eventID int) {
	a.eventID = eventID
	a.muonPath = 0
	a.muonEnergy = 0
	a.photonsProduced = 0
	a.photonsArrived = 0
	a.arrivalTimes = a.arrivalTimes[:0]
}

func (a *EventAccumulator) AddPath(length float64) {
	a.muonPath += length
}

func (a *EventAccumulator) AddEnergy(energy float64) {
	a.muonEnergy += energy
}

func (a *EventAccumulator) IncrementProduced() {
	a.photonsProduced++
}

func (a *EventAccumulator) IncrementArrived() {
	a.photonsArrived++
}

// RecordArrivalTime keeps t only if it falls inside [Min, Max).
// Samples outside the window are dropped, not clipped.
func (a *EventAccumulator) RecordArrivalTime(t float64) {
	if !a.window.Contains(t) {
		return
	}
	a.arrivalTimes = append(a.arrivalTimes, t)
}

func (a *EventAccumulator) EventID() int {
	return a.eventID
}

func (a *EventAccumulator) MuonPath() float64 {
	return a.muonPath
}

func (a *EventAccumulator) MuonEnergy() float64 {
	return a.muonEnergy
}

func (a *EventAccumulator) PhotonsProduced() int {
	return a.photonsProduced
}

func (a *EventAccumulator) PhotonsArrived() int {
	return a.photonsArrived
}

// DetectedCount is the number of retained arrival times.
func (a *EventAccumulator) DetectedCount() int {
	return len(a.arrivalTimes)
}

// ArrivalTimes returns a copy of the retained samples in recording order.
func (a *EventAccumulator) ArrivalTimes() []float64 {
	times := make([]float64, len(a.arrivalTimes))
	copy(times, a.arrivalTimes)
	return times
}

func (a *EventAccumulator) Window() TimeWindow {
	return a.window
}
