package bus

import (
	"testing"
	"time"

	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedCall struct {
	device int64
	data   map[string]any
	times  core.Times
}

type fakeSink struct {
	patches []core.Patch
	chunks  []core.FieldChunk
}

func (f *fakeSink) AcceptPatches(patches []core.Patch)     { f.patches = append(f.patches, patches...) }
func (f *fakeSink) AcceptHistory(chunks []core.FieldChunk) { f.chunks = append(f.chunks, chunks...) }

func newTestBus() (*Bus, *[]capturedCall, *fakeSink) {
	var calls []capturedCall
	sink := &fakeSink{}
	b := &Bus{
		process: func(now time.Time, device int64, data map[string]any, times core.Times) ([]core.Patch, []core.FieldChunk) {
			calls = append(calls, capturedCall{device: device, data: data, times: times})
			return nil, nil
		},
		sink: sink,
	}
	return b, &calls, sink
}

func TestHandleBDCLUsesMeasTsWhenPresent(t *testing.T) {
	b, calls, _ := newTestBus()
	b.handleBDCL(&nats.Msg{Data: []byte(`{
		"header": {"uniqId": 7, "measTs": 1000, "serverTs": 2000},
		"data": {"status.temperature": 21}
	}`)})

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, int64(7), c.device)
	require.True(t, c.times.HasMeasurement())
	assert.Equal(t, int64(1000), *c.times.Measurement)
}

func TestHandleBDCLFallsBackToServerTsWhenMeasTsAbsent(t *testing.T) {
	b, calls, _ := newTestBus()
	b.handleBDCL(&nats.Msg{Data: []byte(`{
		"header": {"uniqId": 7, "serverTs": 2000},
		"data": {"status.temperature": 21}
	}`)})

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	require.True(t, c.times.HasMeasurement())
	assert.Equal(t, int64(2000), *c.times.Measurement)
}

func TestHandleBDCLInvokesTranslatorsWithNoMeasurementWhenBothAbsent(t *testing.T) {
	b, calls, _ := newTestBus()
	b.handleBDCL(&nats.Msg{Data: []byte(`{
		"header": {"uniqId": 7},
		"data": {"status.temperature": 21}
	}`)})

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.False(t, c.times.HasMeasurement())
}

func TestHandleBDCLDropsMessageMissingDataOrUniqId(t *testing.T) {
	b, calls, _ := newTestBus()
	b.handleBDCL(&nats.Msg{Data: []byte(`{"header": {"uniqId": 7}}`)})
	assert.Empty(t, *calls)

	b.handleBDCL(&nats.Msg{Data: []byte(`{"header": {}, "data": {"a": 1}}`)})
	assert.Empty(t, *calls)
}

func TestHandleBDCLDropsMalformedJSON(t *testing.T) {
	b, calls, _ := newTestBus()
	b.handleBDCL(&nats.Msg{Data: []byte(`not json`)})
	assert.Empty(t, *calls)
}

func TestHandleSCLDefaultsNullPositionsAndSetsDeviceID(t *testing.T) {
	b, _, sink := newTestBus()
	b.handleSCL(&nats.Msg{Data: []byte(`{
		"devId": 42,
		"uuid": "abc-123",
		"timestamp": 1000,
		"sensorsetbufferTime": 500,
		"positions": null
	}`)})

	require.Len(t, sink.patches, 1)
	p := sink.patches[0]
	assert.Equal(t, "sclpositions", p.Coll)
	assert.Equal(t, "tag.42", p.ID)
	assert.Equal(t, "sclProfiles/abc-123/rawPositions", p.Attr)
	assert.Equal(t, [][3]float64{{0, 0, 0}}, p.Value)
}

func TestHandleSCLUsesSuppliedPositions(t *testing.T) {
	b, _, sink := newTestBus()
	b.handleSCL(&nats.Msg{Data: []byte(`{
		"devId": 42,
		"uuid": "abc-123",
		"timestamp": 1000,
		"sensorsetbufferTime": 500,
		"positions": [{"positionVector": [1, 2, 3]}]
	}`)})

	require.Len(t, sink.patches, 1)
	p := sink.patches[0]
	assert.Equal(t, "tag.42", p.ID)
	assert.Equal(t, [][3]float64{{1, 2, 3}}, p.Value)
}
