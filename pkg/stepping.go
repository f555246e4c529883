package readout

import "fmt"

// BoundaryStepClassifier looks at every transport step of the event. Muon
// steps inside the active volume feed dE/dx; optical photons are only looked
// at when they stop on a geometric boundary.
type BoundaryStepClassifier struct {
	ActiveVolume string
	WindowVolume string
	event        *EventAccumulator
}

func NewBoundaryStepClassifier(activeVolume string, windowVolume string, event *EventAccumulator) *BoundaryStepClassifier {
	return &BoundaryStepClassifier{
		ActiveVolume: activeVolume,
		WindowVolume: windowVolume,
		event:        event,
	}
}

// OnStep classifies one step. boundary is the optical boundary process of
// the worker running the step, nil when none was found for the track.
// StopAndKill is returned only for a detected photon.
//
// Detection is decided by the boundary status alone: a Detection on a step
// whose post-step point has no volume still records its arrival time. Only
// the path, energy and window-arrival tallies need a volume.
func (c *BoundaryStepClassifier) OnStep(step StepInfo, boundary BoundaryProcess) TrackStatus {
	if c.event == nil {
		return Alive
	}

	if step.Species.IsMuon() {
		if name, ok := step.PreStep.volumeName(); ok && name == c.ActiveVolume {
			c.event.AddPath(step.StepLength)
			c.event.AddEnergy(step.EnergyDeposit)
		}
	}

	if step.Species != OpticalPhoton {
		return Alive
	}
	if step.PostStep == nil || step.PostStep.StepStatus != GeomBoundary {
		return Alive
	}

	// Arrival at the window is counted but the photon goes on to the
	// window/photocathode interface where detection is decided.
	if name, ok := step.PostStep.volumeName(); ok && name == c.WindowVolume {
		c.event.IncrementArrived()
	}

	if boundary == nil {
		return Alive
	}
	status := boundary.Status()
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Event %d photon at boundary: %v t=%v ns", c.event.EventID(), status, step.PostStep.GlobalTime)
		logger.Info(message, "stepping")
	}
	if status == Detection {
		c.event.RecordArrivalTime(step.PostStep.GlobalTime)
		return StopAndKill
	}
	return Alive
}
