package readout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `# two events, interleaved
{"kind":"track","event":1,"track":1,"species":"mu-"}
{"kind":"step","event":1,"track":1,"species":"mu-","pre":"RodLV","post":"RodLV","status":"fAlongStepDoItProc","length":100,"edep":20}
{"kind":"track","event":0,"track":1,"species":"mu+"}

{"kind":"track","event":1,"track":2,"species":"opticalphoton","creator":"Scintillation"}
{"kind":"step","event":1,"track":2,"species":"opticalphoton","pre":"RodLV","post":"SiPMWindowLV","status":"fGeomBoundary","time":4.5,"boundary":"FresnelRefraction"}
{"kind":"step","event":1,"track":2,"species":"opticalphoton","pre":"SiPMWindowLV","post":"SiPMPhotocathodeLV","status":"fGeomBoundary","time":5.25,"boundary":"Detection"}
{"kind":"step","event":1,"track":2,"species":"opticalphoton","pre":"SiPMPhotocathodeLV","post":"SiPMPhotocathodeLV","status":"fGeomBoundary","time":6,"boundary":"Detection"}
{"kind":"track","event":1,"track":3,"species":"opticalphoton","creator":"Cerenkov"}
{"kind":"step","event":1,"track":3,"species":"opticalphoton","pre":"RodLV","status":"fGeomBoundary","time":7}
`

func TestReadTrace(t *testing.T) {
	events, err := ReadTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 0, events[0].EventID)
	require.Len(t, events[0].Notifications, 1)
	assert.Equal(t, AntiMuon, events[0].Notifications[0].Species)

	assert.Equal(t, 1, events[1].EventID)
	notifications := events[1].Notifications
	require.Len(t, notifications, 8)

	muon := notifications[1]
	assert.Equal(t, KindStep, muon.Kind)
	assert.Equal(t, "RodLV", muon.Step.PreStep.Volume.Name)
	assert.Equal(t, AlongStepDoItProc, muon.Step.PostStep.StepStatus)
	assert.Equal(t, 100.0, muon.Step.StepLength)
	assert.Equal(t, 20.0, muon.Step.EnergyDeposit)
	assert.Nil(t, muon.Boundary)

	created := notifications[2]
	assert.Equal(t, KindTrack, created.Kind)
	assert.Equal(t, 2, created.TrackID)
	assert.Equal(t, "Scintillation", created.Creator)

	detected := notifications[4]
	assert.Equal(t, GeomBoundary, detected.Step.PostStep.StepStatus)
	assert.Equal(t, 5.25, detected.Step.PostStep.GlobalTime)
	require.NotNil(t, detected.Boundary)
	assert.Equal(t, Detection, detected.Boundary.Status())

	// No "post" in the line: the post-step point has no volume.
	lost := notifications[7]
	assert.Nil(t, lost.Step.PostStep.Volume)
	assert.Nil(t, lost.Boundary)
}

func TestReadTraceErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `{"kind":`},
		{"unknown kind", `{"kind":"vertex","event":0}`},
		{"bad step status", `{"kind":"step","event":0,"status":"fNowhere"}`},
		{"bad boundary status", `{"kind":"step","event":0,"status":"fGeomBoundary","boundary":"Teleport"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trace := "{\"kind\":\"track\",\"event\":0,\"track\":1,\"species\":\"mu-\"}\n" + tt.line + "\n"
			_, err := ReadTrace(strings.NewReader(trace))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "trace line 2")
		})
	}
}

func TestReadTraceFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "trace.jsonl")
	require.NoError(t, os.WriteFile(filename, []byte(sampleTrace), 0o644))

	events, err := ReadTraceFile(filename)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = ReadTraceFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}
