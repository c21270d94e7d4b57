package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/holoplot/go-evdev"
)

// ErrDeviceNotFound は条件に合うデバイスが見つからない場合のエラー
var ErrDeviceNotFound = errors.New("device not found")

// keyd を使っている場合は物理キーボードではなくkeydの仮想キーボードを読む
const keydKeyboardName = "keyd virtual keyboard"

// デバイスタイプを表す列挙型
type DeviceType int

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeTouchpad
	DeviceTypeKeyboard
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeTouchpad:
		return "touchpad"
	case DeviceTypeKeyboard:
		return "keyboard"
	}
	return "other"
}

type Device struct {
	Name string
	Path string
	Type DeviceType
	// 権限がなく開けなかったデバイスは false
	Accessible bool
}

// ScanDevices は /dev/input/event* を列挙して分類する
// 自分自身が作った仮想デバイスは含めない
func ScanDevices() ([]Device, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("cannot read /dev/input: %w", err)
	}

	var devices []Device
	for _, p := range paths {
		if strings.HasPrefix(p.Name, VirtualDeviceName) {
			continue
		}
		dev, err := evdev.Open(p.Path)
		if err != nil {
			devices = append(devices, Device{Name: p.Name, Path: p.Path})
			continue
		}
		devices = append(devices, Device{
			Name:       p.Name,
			Path:       p.Path,
			Type:       classify(dev.CapableEvents(evdev.EV_KEY), dev.CapableEvents(evdev.EV_ABS)),
			Accessible: true,
		})
		_ = dev.Close()
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// classify はデバイスの対応イベントから種類を判定する
//   - BTN_TOUCH と ABS_X/ABS_Y を持つ: タッチパッド
//   - KEY_A と KEY_J を持つ: キーボード
func classify(keys, axes []evdev.EvCode) DeviceType {
	has := func(codes []evdev.EvCode, want evdev.EvCode) bool {
		for _, c := range codes {
			if c == want {
				return true
			}
		}
		return false
	}

	if has(keys, evdev.BTN_TOUCH) && has(axes, evdev.ABS_X) && has(axes, evdev.ABS_Y) {
		return DeviceTypeTouchpad
	}
	if has(keys, evdev.KEY_A) && has(keys, evdev.KEY_J) {
		return DeviceTypeKeyboard
	}
	return DeviceTypeOther
}

// FindTouchpad はタッチパッドを探す。preferred が空でなければ名前の一部一致を優先する
func FindTouchpad(preferred string) (Device, error) {
	devices, err := ScanDevices()
	if err != nil {
		return Device{}, err
	}
	return selectDevice(devices, DeviceTypeTouchpad, preferred)
}

// FindKeyboard はキーボードを探す
// 優先順位: 指定された名前 > keyd virtual keyboard > 最初に見つかったキーボード
func FindKeyboard(preferred string) (Device, error) {
	devices, err := ScanDevices()
	if err != nil {
		return Device{}, err
	}
	if preferred == "" {
		if dev, err := selectDevice(devices, DeviceTypeKeyboard, keydKeyboardName); err == nil {
			return dev, nil
		}
	}
	return selectDevice(devices, DeviceTypeKeyboard, preferred)
}

// selectDevice は種類が一致するデバイスを選ぶ
// preferred が指定されている場合は名前に preferred を含むものだけを対象にする
func selectDevice(devices []Device, typ DeviceType, preferred string) (Device, error) {
	for _, dev := range devices {
		if !dev.Accessible || dev.Type != typ {
			continue
		}
		if preferred != "" && !strings.Contains(dev.Name, preferred) {
			continue
		}
		return dev, nil
	}
	if preferred != "" {
		return Device{}, fmt.Errorf("%w: %s %q", ErrDeviceNotFound, typ, preferred)
	}
	return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, typ)
}
