package readout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

// A trace is a recording of transport notifications, one JSON object per
// line. Lines are grouped by event and replayed in file order:
//
//	{"kind":"track","event":0,"track":7,"species":"opticalphoton","creator":"Scintillation"}
//	{"kind":"step","event":0,"track":7,"species":"opticalphoton","pre":"RodLV","post":"SiPMWindowLV",
//	 "status":"fGeomBoundary","length":3.1,"time":4.2,"boundary":"FresnelRefraction"}
//
// A missing "pre" or "post" is a step point without a volume; a missing
// "boundary" means no boundary process was available for the step.
const (
	KindTrack = "track"
	KindStep  = "step"
)

type notificationJSON struct {
	Kind     string  `json:"kind"`
	Event    int     `json:"event"`
	Track    int     `json:"track"`
	Species  Species `json:"species"`
	Creator  string  `json:"creator"`
	Pre      *string `json:"pre"`
	Post     *string `json:"post"`
	Status   string  `json:"status"`
	Length   float64 `json:"length"`
	Edep     float64 `json:"edep"`
	Time     float64 `json:"time"`
	Boundary string  `json:"boundary"`
}

type Notification struct {
	Kind     string
	TrackID  int
	Species  Species
	Creator  string
	Step     StepInfo
	Boundary BoundaryProcess
}

type TraceEvent struct {
	EventID       int
	Notifications []Notification
}

func ReadTraceFile(filename string) ([]TraceEvent, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()
	return ReadTrace(file)
}

// ReadTrace returns the events of a trace sorted by event id.
func ReadTrace(r io.Reader) ([]TraceEvent, error) {
	byEvent := make(map[int][]Notification)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var raw notificationJSON
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNumber, err)
		}
		notification, err := raw.decode()
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNumber, err)
		}
		byEvent[raw.Event] = append(byEvent[raw.Event], notification)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading trace: %w", err)
	}

	eventIDs := slices.Sorted(maps.Keys(byEvent))
	events := make([]TraceEvent, len(eventIDs))
	for i, id := range eventIDs {
		events[i] = TraceEvent{EventID: id, Notifications: byEvent[id]}
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Trace read: %d lines, %d events", lineNumber, len(events))
		logger.Info(message, "trace")
	}
	return events, nil
}

func (raw notificationJSON) decode() (Notification, error) {
	n := Notification{
		Kind:    raw.Kind,
		TrackID: raw.Track,
		Species: raw.Species,
		Creator: raw.Creator,
	}
	switch raw.Kind {
	case KindTrack:
		return n, nil
	case KindStep:
	default:
		return n, fmt.Errorf("unknown notification kind %q", raw.Kind)
	}

	postStatus := StepStatusUndefined
	if raw.Status != "" {
		status, err := ParseStepStatus(raw.Status)
		if err != nil {
			return n, err
		}
		postStatus = status
	}
	n.Step = StepInfo{
		Species:       raw.Species,
		PreStep:       &StepPoint{Volume: volumeFromName(raw.Pre)},
		PostStep:      &StepPoint{Volume: volumeFromName(raw.Post), StepStatus: postStatus, GlobalTime: raw.Time},
		StepLength:    raw.Length,
		EnergyDeposit: raw.Edep,
	}
	if raw.Boundary != "" {
		status, err := ParseBoundaryStatus(raw.Boundary)
		if err != nil {
			return n, err
		}
		n.Boundary = BoundaryOutcome(status)
	}
	return n, nil
}

func volumeFromName(name *string) *Volume {
	if name == nil || *name == "" {
		return nil
	}
	return &Volume{Name: *name}
}
