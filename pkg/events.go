package readout

import "fmt"

// Species is the particle name reported by the transport engine.
type Species string

const (
	Muon          Species = "mu-"
	AntiMuon      Species = "mu+"
	OpticalPhoton Species = "opticalphoton"
)

func (s Species) IsMuon() bool {
	return s == Muon || s == AntiMuon
}

// StepStatus tells what limited a step. Only GeomBoundary matters here,
// the rest are kept so traces can be decoded without loss.
type StepStatus int

const (
	StepStatusUndefined StepStatus = iota
	WorldBoundary
	GeomBoundary
	AtRestDoItProc
	AlongStepDoItProc
	PostStepDoItProc
	UserDefinedLimit
	ExclusivelyForcedProc
)

var stepStatusStrings = []string{
	"fUndefined",
	"fWorldBoundary",
	"fGeomBoundary",
	"fAtRestDoItProc",
	"fAlongStepDoItProc",
	"fPostStepDoItProc",
	"fUserDefinedLimit",
	"fExclusivelyForcedProc",
}

func (s StepStatus) String() string {
	if s < StepStatusUndefined || s > ExclusivelyForcedProc {
		return "UNKNOWN"
	}
	return stepStatusStrings[s]
}

func ParseStepStatus(s string) (StepStatus, error) {
	for i, v := range stepStatusStrings {
		if v == s {
			return StepStatus(i), nil
		}
	}
	return StepStatusUndefined, fmt.Errorf("invalid step status: %s", s)
}

// BoundaryStatus is the outcome of the optical boundary process for the
// last step of a photon.
type BoundaryStatus int

const (
	BoundaryUndefined BoundaryStatus = iota
	Transmission
	FresnelRefraction
	FresnelReflection
	TotalInternalReflection
	LambertianReflection
	LobeReflection
	SpikeReflection
	BackScattering
	Absorption
	Detection
	NotAtBoundary
	SameMaterial
	StepTooSmall
	NoRINDEX
)

var boundaryStatusStrings = []string{
	"Undefined",
	"Transmission",
	"FresnelRefraction",
	"FresnelReflection",
	"TotalInternalReflection",
	"LambertianReflection",
	"LobeReflection",
	"SpikeReflection",
	"BackScattering",
	"Absorption",
	"Detection",
	"NotAtBoundary",
	"SameMaterial",
	"StepTooSmall",
	"NoRINDEX",
}

func (b BoundaryStatus) String() string {
	if b < BoundaryUndefined || b > NoRINDEX {
		return "UNKNOWN"
	}
	return boundaryStatusStrings[b]
}

func ParseBoundaryStatus(s string) (BoundaryStatus, error) {
	for i, v := range boundaryStatusStrings {
		if v == s {
			return BoundaryStatus(i), nil
		}
	}
	return BoundaryUndefined, fmt.Errorf("invalid boundary status: %s", s)
}

// BoundaryProcess is the optical boundary process attached to the
// worker that is transporting the current track. A nil BoundaryProcess
// means the engine did not resolve one for the track's process list.
type BoundaryProcess interface {
	Status() BoundaryStatus
}

// BoundaryOutcome is a BoundaryProcess with a fixed status, used when the
// status has already been read out of the engine (trace replay, tests).
type BoundaryOutcome BoundaryStatus

func (b BoundaryOutcome) Status() BoundaryStatus {
	return BoundaryStatus(b)
}

// TrackStatus is returned to the engine after a step.
type TrackStatus int

const (
	Alive TrackStatus = iota
	StopAndKill
)

func (t TrackStatus) String() string {
	switch t {
	case Alive:
		return "Alive"
	case StopAndKill:
		return "StopAndKill"
	default:
		return "Unknown"
	}
}

type Volume struct {
	Name string
}

type StepPoint struct {
	Volume     *Volume
	StepStatus StepStatus
	GlobalTime float64 // ns
}

// StepInfo is one transport step. Lengths are in mm, energies in MeV.
type StepInfo struct {
	Species       Species
	PreStep       *StepPoint
	PostStep      *StepPoint
	StepLength    float64
	EnergyDeposit float64
}

func (p *StepPoint) volumeName() (string, bool) {
	if p == nil || p.Volume == nil {
		return "", false
	}
	return p.Volume.Name, true
}

// EventRecord is everything written for one event.
type EventRecord struct {
	EventID         int
	MuonPath        float64 // mm
	MuonEnergy      float64 // MeV
	PhotonsProduced int
	PhotonsArrived  int
	Observables     DerivedObservables
	Histogram       Histogram
}
