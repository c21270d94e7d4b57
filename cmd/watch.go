package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nagamine-git/way-thumbsense/internal/device"
	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

// watchCmd はリマップせずに判定結果だけを表示する
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print touch transitions and mapped keys without remapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		policy, err := cfg.Policy()
		if err != nil {
			return err
		}

		touchpadDevice, err := device.FindTouchpad(cfg.Devices.Touchpad)
		if err != nil {
			return err
		}
		keyboardDevice, err := device.FindKeyboard(cfg.Devices.Keyboard)
		if err != nil {
			return err
		}
		touchpad, err := device.OpenInput(touchpadDevice.Path)
		if err != nil {
			return err
		}
		defer touchpad.Close()
		geometry, err := touchpad.Geometry()
		if err != nil {
			return err
		}
		keyboard, err := device.OpenInput(keyboardDevice.Path)
		if err != nil {
			return err
		}
		defer keyboard.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "touchpad: %s / keyboard: %s / mode: %s\n", touchpad.Name(), keyboard.Name(), policy.Name())

		sink := &printSink{out: out}
		engine := remap.NewEngine(geometry, cfg.ExclusionZones(), policy, sink,
			remap.WithLogger(logger),
			remap.WithPassThrough(true),
			remap.WithTouchObserver(sink.touchChanged))
		sink.engine = engine

		var touchpadSource remap.Source = touchpad
		if watchRaw {
			touchpadSource = &rawSource{src: touchpad, out: sink}
		}

		done := make(chan error, 1)
		go func() { done <- engine.Run(touchpadSource, keyboard) }()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			// 閉じると両方のループが終了する
			_ = touchpad.Close()
			_ = keyboard.Close()
			<-done
			return nil
		case err := <-done:
			return err
		}
	},
}

var watchRaw bool

func init() {
	watchCmd.Flags().BoolVar(&watchRaw, "raw", false, "タッチパッドの生イベントもフレームごとに表示する")
}

// printSink は仮想デバイスに書き込む代わりに判定結果を表示する
type printSink struct {
	mu     sync.Mutex
	out    io.Writer
	engine *remap.Engine
	last   remap.TouchState
}

func (s *printSink) EmitMouse(button remap.MouseButton, pressed bool) error {
	return s.print(fmt.Sprintf("mouse %s %s", button, pressedString(pressed)))
}

func (s *printSink) EmitKey(code remap.KeyCode, pressed bool) error {
	return s.print(remap.KeyEvent{Code: code, Pressed: pressed}.String())
}

func (s *printSink) print(line string) error {
	if s.engine == nil {
		return errors.New("engine is not attached")
	}
	state := s.engine.TouchState()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLine(line, state)
}

func (s *printSink) writeLine(line string, state remap.TouchState) error {
	tracker := ""
	if s.engine != nil {
		tracker = s.engine.Stats().Tracker
	}
	_, err := fmt.Fprintf(s.out, "%-24s fingers=%d %s\n", line, state.FingerCount, tracker)
	return err
}

// touchChanged はタッチ状態が変わるたびにタッチパッドのループから呼ばれる
func (s *printSink) touchChanged(state remap.TouchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.last.IsTouching():
		_ = s.writeLine("touch start", state)
	case !state.IsTouching():
		_ = s.writeLine("touch end", state)
	default:
		_ = s.writeLine("fingers changed", state)
	}
	s.last = state
}

// rawSource は読み出したフレームをそのまま表示してから渡す
type rawSource struct {
	src remap.Source
	out *printSink
}

func (r *rawSource) FetchEvents() ([]event.Event, error) {
	events, err := r.src.FetchEvents()
	if err != nil {
		return nil, err
	}
	r.out.mu.Lock()
	defer r.out.mu.Unlock()
	for _, ev := range events {
		fmt.Fprintf(r.out.out, "  %d.%06d type=0x%02x code=0x%03x value=%d\n",
			ev.Time.Sec, ev.Time.Usec, ev.Type, ev.Code, ev.Value)
	}
	fmt.Fprintln(r.out.out, "  -- SYN_REPORT --")
	return events, nil
}

func pressedString(pressed bool) string {
	if pressed {
		return "press"
	}
	return "release"
}

var _ remap.Sink = (*printSink)(nil)
