package main

import (
	"bytes"
	"errors"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

func newWatchEngine(t *testing.T, buf *bytes.Buffer) (*remap.Engine, *printSink) {
	t.Helper()
	geometry, err := remap.NewDeviceGeometry(remap.AxisBounds{Max: 100}, remap.AxisBounds{Max: 100})
	require.NoError(t, err)
	sink := &printSink{out: buf}
	sink.engine = remap.NewEngine(geometry, remap.NoExclusion(), remap.ClickPolicy{Buttons: remap.DefaultButtonTable()}, sink,
		remap.WithTouchObserver(sink.touchChanged))
	return sink.engine, sink
}

func touchFrame(pressed int32) []event.Event {
	return []event.Event{
		{Type: event.Abs, Code: event.AbsX, Value: 50},
		{Type: event.Abs, Code: event.AbsY, Value: 50},
		{Type: event.Key, Code: event.BtnTouch, Value: pressed},
	}
}

func TestPrintSink(t *testing.T) {
	t.Run("mapped actions are printed with the touch state", func(t *testing.T) {
		var buf bytes.Buffer
		_, sink := newWatchEngine(t, &buf)

		require.NoError(t, sink.EmitMouse(remap.ButtonLeft, true))

		assert.Contains(t, buf.String(), "mouse left press")
		assert.Contains(t, buf.String(), "fingers=0")
	})

	t.Run("every touch transition is printed", func(t *testing.T) {
		var buf bytes.Buffer
		engine, _ := newWatchEngine(t, &buf)

		// 間を空けずにタッチとリフトを繰り返しても取りこぼさない
		for i := 0; i < 3; i++ {
			engine.HandleTouchpadBatch(touchFrame(1))
			engine.HandleTouchpadBatch(touchFrame(0))
		}

		assert.Equal(t, 3, strings.Count(buf.String(), "touch start"))
		assert.Equal(t, 3, strings.Count(buf.String(), "touch end"))
	})
}

type onceSource struct {
	batches [][]event.Event
}

func (s *onceSource) FetchEvents() ([]event.Event, error) {
	if len(s.batches) == 0 {
		return nil, errors.New("closed")
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func TestRawSource(t *testing.T) {
	var buf bytes.Buffer
	frame := []event.Event{
		{Time: syscall.Timeval{Sec: 12, Usec: 345}, Type: event.Abs, Code: event.AbsX, Value: 640},
		{Type: event.Key, Code: event.BtnTouch, Value: 1},
	}
	raw := &rawSource{src: &onceSource{batches: [][]event.Event{frame}}, out: &printSink{out: &buf}}

	got, err := raw.FetchEvents()

	require.NoError(t, err)
	assert.Equal(t, frame, got)
	assert.Contains(t, buf.String(), "12.000345 type=0x03 code=0x000 value=640")
	assert.Contains(t, buf.String(), "type=0x01 code=0x14a value=1")
	assert.Contains(t, buf.String(), "-- SYN_REPORT --")

	_, err = raw.FetchEvents()
	assert.Error(t, err)
}
