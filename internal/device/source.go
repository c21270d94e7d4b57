package device

import (
	"errors"
	"fmt"

	"github.com/holoplot/go-evdev"

	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

// ErrNoAbsAxes はタッチパッドがABS_X/ABS_Yを報告しない場合のエラー
var ErrNoAbsAxes = errors.New("device has no ABS_X/ABS_Y axes")

// Input は読み取り用に開いたevdevデバイス
type Input struct {
	dev     *evdev.InputDevice
	path    string
	name    string
	grabbed bool
}

// OpenInput はデバイスファイルを開く
func OpenInput(path string) (*Input, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open device file %s: %w", path, err)
	}
	name, err := dev.Name()
	if err != nil {
		name = "unknown"
	}
	return &Input{dev: dev, path: path, name: name}, nil
}

func (in *Input) Name() string { return in.name }

func (in *Input) Path() string { return in.path }

// FetchEvents は次のSYN_REPORTまでのイベントを読み出す
func (in *Input) FetchEvents() ([]event.Event, error) {
	return readFrame(in.readOne)
}

func (in *Input) readOne() (event.Event, error) {
	ev, err := in.dev.ReadOne()
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		Time:  ev.Time,
		Type:  uint16(ev.Type),
		Code:  uint16(ev.Code),
		Value: ev.Value,
	}, nil
}

// readFrame はSYN_REPORTまでのイベントをまとめる
// SYN_DROPPEDを受け取った場合は、次のSYN_REPORTまでの中途半端なフレームを捨てる
func readFrame(next func() (event.Event, error)) ([]event.Event, error) {
	var (
		batch    []event.Event
		dropping bool
	)
	for {
		ev, err := next()
		if err != nil {
			return nil, err
		}
		if ev.Type == event.Syn {
			switch ev.Code {
			case event.SynReport:
				if dropping {
					dropping = false
					continue
				}
				return batch, nil
			case event.SynDropped:
				dropping = true
				batch = batch[:0]
				continue
			}
		}
		if dropping {
			continue
		}
		batch = append(batch, ev)
	}
}

// Geometry はタッチパッドの座標範囲を取得する
func (in *Input) Geometry() (remap.DeviceGeometry, error) {
	infos, err := in.dev.AbsInfos()
	if err != nil {
		return remap.DeviceGeometry{}, fmt.Errorf("failed to query abs info of %s: %w", in.path, err)
	}
	x, okX := infos[evdev.ABS_X]
	y, okY := infos[evdev.ABS_Y]
	if !okX || !okY {
		return remap.DeviceGeometry{}, fmt.Errorf("%s: %w", in.path, ErrNoAbsAxes)
	}
	return remap.NewDeviceGeometry(
		remap.AxisBounds{Min: x.Minimum, Max: x.Maximum},
		remap.AxisBounds{Min: y.Minimum, Max: y.Maximum},
	)
}

// Grab はデバイスを専有する。専有中は他のプログラムにイベントが届かない
func (in *Input) Grab() error {
	if in.grabbed {
		return nil
	}
	if err := in.dev.Grab(); err != nil {
		return fmt.Errorf("failed to grab device: %w", err)
	}
	in.grabbed = true
	return nil
}

// Ungrab はデバイスの専有を解除する
func (in *Input) Ungrab() error {
	if !in.grabbed {
		return nil
	}
	if err := in.dev.Ungrab(); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}
	in.grabbed = false
	return nil
}

func (in *Input) Close() error {
	_ = in.Ungrab()
	return in.dev.Close()
}
