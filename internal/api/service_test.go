package api

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagamine-git/way-thumbsense/internal/config"
	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

// pipeSource はテストから送ったバッチを返し、Close されるとエラーで戻る
type pipeSource struct {
	batches chan []event.Event
	closed  chan struct{}
	once    sync.Once
}

func newPipeSource() *pipeSource {
	return &pipeSource{
		batches: make(chan []event.Event),
		closed:  make(chan struct{}),
	}
}

func (s *pipeSource) FetchEvents() ([]event.Event, error) {
	select {
	case b := <-s.batches:
		return b, nil
	case <-s.closed:
		return nil, os.ErrClosed
	}
}

func (s *pipeSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type recordingSink struct {
	mu      sync.Mutex
	buttons []remap.MouseButton
	keys    []remap.KeyCode
	closed  bool
}

func (s *recordingSink) EmitMouse(button remap.MouseButton, pressed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pressed {
		s.buttons = append(s.buttons, button)
	}
	return nil
}

func (s *recordingSink) EmitKey(code remap.KeyCode, pressed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pressed {
		s.keys = append(s.keys, code)
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) pressedButtons() []remap.MouseButton {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remap.MouseButton(nil), s.buttons...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frame(events ...event.Event) []event.Event {
	return append(events, event.Event{Type: event.Syn, Code: event.SynReport})
}

// startFake は実デバイスの代わりにパイプをつないでサービスを開始する
func startFake(t *testing.T, cfg *config.Config) (*RemapService, *pipeSource, *pipeSource, *recordingSink) {
	t.Helper()
	geometry, err := remap.NewDeviceGeometry(remap.AxisBounds{Min: 0, Max: 1000}, remap.AxisBounds{Min: 0, Max: 1000})
	require.NoError(t, err)
	policy, err := cfg.Policy()
	require.NoError(t, err)

	touchpad, keyboard, sink := newPipeSource(), newPipeSource(), &recordingSink{}
	engine := remap.NewEngine(geometry, cfg.ExclusionZones(), policy, sink, remap.WithLogger(quietLogger()))

	svc := NewRemapService(cfg, quietLogger())
	svc.statusMutex.Lock()
	svc.touchpad = "Test Touchpad"
	svc.keyboard = "Test Keyboard"
	svc.run(engine, touchpad, keyboard, []io.Closer{touchpad, keyboard, sink})
	svc.statusMutex.Unlock()
	return svc, touchpad, keyboard, sink
}

func TestRemapService(t *testing.T) {
	t.Run("touching turns the mapped key into a click", func(t *testing.T) {
		svc, touchpad, keyboard, sink := startFake(t, config.DefaultConfig())
		defer svc.Stop()

		touchpad.batches <- frame(
			event.Event{Type: event.Abs, Code: event.AbsX, Value: 500},
			event.Event{Type: event.Abs, Code: event.AbsY, Value: 500},
			event.Event{Type: event.Key, Code: event.BtnTouch, Value: 1},
		)
		require.Eventually(t, func() bool { return svc.Status().Stats.Touching }, time.Second, 5*time.Millisecond)

		keyboard.batches <- frame(event.Event{Type: event.Key, Code: event.KeyJ, Value: 1})
		require.Eventually(t, func() bool { return len(sink.pressedButtons()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []remap.MouseButton{remap.ButtonLeft}, sink.pressedButtons())

		status := svc.Status()
		assert.True(t, status.Running)
		assert.Equal(t, remap.ModeClick, status.Policy)
		assert.Equal(t, "Test Touchpad", status.Touchpad)
		assert.Equal(t, uint64(1), status.Stats.Touches)
		assert.Equal(t, uint64(1), status.Stats.MouseClicks)
	})

	t.Run("config updates reach the running engine", func(t *testing.T) {
		svc, touchpad, _, _ := startFake(t, config.DefaultConfig())
		defer svc.Stop()

		updated := config.DefaultConfig()
		updated.Exclusion.Left = 20
		svc.UpdateConfig(updated)
		assert.Same(t, updated, svc.GetConfig())

		touchpad.batches <- frame(
			event.Event{Type: event.Abs, Code: event.AbsX, Value: 100},
			event.Event{Type: event.Abs, Code: event.AbsY, Value: 500},
			event.Event{Type: event.Key, Code: event.BtnTouch, Value: 1},
		)
		require.Eventually(t, func() bool { return svc.Status().Stats.ExcludedTouches == 1 }, time.Second, 5*time.Millisecond)
		assert.False(t, svc.Status().Stats.Touching)
	})

	t.Run("stop closes every device and ends both loops", func(t *testing.T) {
		svc, touchpad, keyboard, sink := startFake(t, config.DefaultConfig())

		require.NoError(t, svc.Stop())

		select {
		case <-svc.Done():
		case <-time.After(time.Second):
			t.Fatal("loops did not stop")
		}
		assert.False(t, svc.IsRunning())
		assert.NotEmpty(t, svc.Status().LastErr)
		assert.True(t, sink.closed)
		assert.NoError(t, touchpad.Close())
		assert.NoError(t, keyboard.Close())

		assert.Error(t, svc.Stop())
	})
}
