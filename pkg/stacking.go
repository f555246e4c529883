package readout

// TrackClassifier counts scintillation photons as they are created. It only
// observes: every track keeps being transported.
type TrackClassifier struct {
	ScintProcess string
	event        *EventAccumulator
}

func NewTrackClassifier(scintProcess string, event *EventAccumulator) *TrackClassifier {
	return &TrackClassifier{ScintProcess: scintProcess, event: event}
}

// OnTrackCreated is called once per new secondary with its species and the
// name of the process that created it ("" for primaries).
func (c *TrackClassifier) OnTrackCreated(species Species, creatorProcess string) {
	if species != OpticalPhoton {
		return
	}
	if creatorProcess != "" && creatorProcess == c.ScintProcess && c.event != nil {
		c.event.IncrementProduced()
	}
}
