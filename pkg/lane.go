package readout

import "fmt"

// Lane is the per-worker event pipeline: one accumulator fed by both
// classifiers. Lanes share nothing with each other.
type Lane struct {
	ID          int
	Event       *EventAccumulator
	Tracks      *TrackClassifier
	Steps       *BoundaryStepClassifier
	calibration Calibration
}

func NewLane(id int, config Configuration) *Lane {
	event := NewEventAccumulator(config.Window())
	return &Lane{
		ID:          id,
		Event:       event,
		Tracks:      NewTrackClassifier(config.ScintProcess, event),
		Steps:       NewBoundaryStepClassifier(config.ActiveVolume, config.WindowVolume, event),
		calibration: config.Calibration(),
	}
}

func (l *Lane) BeginEvent(eventID int) {
	l.Event.Reset(eventID)
}

func (l *Lane) OnTrackCreated(species Species, creatorProcess string) {
	l.Tracks.OnTrackCreated(species, creatorProcess)
}

func (l *Lane) OnStep(step StepInfo, boundary BoundaryProcess) TrackStatus {
	return l.Steps.OnStep(step, boundary)
}

// EndEvent reduces the accumulated state into the record to be written.
func (l *Lane) EndEvent() EventRecord {
	record := EventRecord{
		EventID:         l.Event.EventID(),
		MuonPath:        l.Event.MuonPath(),
		MuonEnergy:      l.Event.MuonEnergy(),
		PhotonsProduced: l.Event.PhotonsProduced(),
		PhotonsArrived:  l.Event.PhotonsArrived(),
		Observables:     Reduce(l.Event, l.calibration),
		Histogram:       NewHistogram(l.Event.ArrivalTimes(), l.Event.Window()),
	}
	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Lane %d event %d: path %v mm, dE %v MeV, produced %d, arrived %d, detected %d",
			l.ID, record.EventID, record.MuonPath, record.MuonEnergy,
			record.PhotonsProduced, record.PhotonsArrived, record.Observables.Detected)
		logger.Info(message, "lane")
	}
	return record
}
