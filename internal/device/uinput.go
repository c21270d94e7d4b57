package device

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
	"github.com/nagamine-git/way-thumbsense/internal/utils"
)

// VirtualDeviceName は作成する仮想デバイス名の接頭辞。検出時に自分自身を除外するのにも使う
const VirtualDeviceName = "way-thumbsense"

// 仮想キーボードに登録するキーコードの範囲
const (
	maxKeyboardCode = 0x2ff
	btnMisc         = 0x100
	keyOk           = 0x160
)

// VirtualDevice は仮想マウス + 仮想キーボード
// 両方の読み取りループから呼ばれるので、書き込みはデバイスごとに直列化する
type VirtualDevice struct {
	mouse      *os.File
	keyboard   *os.File
	mouseMu    sync.Mutex
	keyboardMu sync.Mutex
}

// CreateVirtualDevice はuinputに仮想マウスと仮想キーボードを作成する
func CreateVirtualDevice(path string) (*VirtualDevice, error) {
	mouse, err := createMouse(path, []byte(VirtualDeviceName+" mouse"))
	if err != nil {
		return nil, err
	}
	keyboard, err := createKeyboard(path, []byte(VirtualDeviceName+" keyboard"))
	if err != nil {
		_ = releaseDevice(mouse)
		_ = mouse.Close()
		return nil, err
	}

	// デバイスがシステムに認識されるまで少し待つ
	time.Sleep(100 * time.Millisecond)

	return &VirtualDevice{mouse: mouse, keyboard: keyboard}, nil
}

// EmitMouse はマウスボタンの押下/解放を送る
func (vd *VirtualDevice) EmitMouse(button remap.MouseButton, pressed bool) error {
	vd.mouseMu.Lock()
	defer vd.mouseMu.Unlock()
	return writeEvents(vd.mouse, keyFrame(button.Code(), pressed))
}

// EmitKey はキーの押下/解放を送る
func (vd *VirtualDevice) EmitKey(code remap.KeyCode, pressed bool) error {
	vd.keyboardMu.Lock()
	defer vd.keyboardMu.Unlock()
	return writeEvents(vd.keyboard, keyFrame(uint16(code), pressed))
}

func (vd *VirtualDevice) Close() error {
	var errs []error
	for _, f := range []*os.File{vd.mouse, vd.keyboard} {
		_ = releaseDevice(f)
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func keyFrame(code uint16, pressed bool) []event.Event {
	var value int32
	if pressed {
		value = event.ValuePress
	}
	return []event.Event{
		{Type: event.Key, Code: code, Value: value},
		{Type: event.Syn, Code: event.SynReport, Value: 0},
	}
}

func createMouse(path string, name []byte) (*os.File, error) {
	deviceFile, err := createDeviceFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not create virtual mouse: %w", err)
	}

	// マウスボタンを登録する
	if err := registerDevice(deviceFile, uintptr(event.Key)); err != nil {
		return nil, fmt.Errorf("キー入力イベント(EV_KEY)の登録に失敗しました: %w", err)
	}
	for _, ev := range []int{
		event.MouseBtnLeft,
		event.MouseBtnRight,
		event.MouseBtnMiddle,
	} {
		if err := utils.IOCtl(deviceFile, SetKeyBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("マウスボタンの登録に失敗しました %v: %w", ev, err)
		}
	}

	// 相対移動がないとポインターデバイスとして扱われない
	if err := registerDevice(deviceFile, uintptr(event.Rel)); err != nil {
		return nil, fmt.Errorf("相対座標イベント(EV_REL)の登録に失敗しました: %w", err)
	}
	for _, ev := range []int{event.RelX, event.RelY} {
		if err := utils.IOCtl(deviceFile, SetRelBit, uintptr(ev)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("相対座標軸の登録に失敗しました %v: %w", ev, err)
		}
	}
	if err := utils.IOCtl(deviceFile, SetPropBit, uintptr(PropPointer)); err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("ポインターデバイスプロパティの設定に失敗しました: %w", err)
	}

	return createUsbDevice(deviceFile, newUserDev(name, 0x0817))
}

func createKeyboard(path string, name []byte) (*os.File, error) {
	deviceFile, err := createDeviceFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not create virtual keyboard: %w", err)
	}

	if err := registerDevice(deviceFile, uintptr(event.Key)); err != nil {
		return nil, fmt.Errorf("キー入力イベント(EV_KEY)の登録に失敗しました: %w", err)
	}
	// BTN_*(0x100-0x15f)は登録しない。マウスボタンは仮想マウス側に任せる
	for code := 1; code < maxKeyboardCode; code++ {
		if code >= btnMisc && code < keyOk {
			continue
		}
		if err := utils.IOCtl(deviceFile, SetKeyBit, uintptr(code)); err != nil {
			_ = deviceFile.Close()
			return nil, fmt.Errorf("キーの登録に失敗しました %v: %w", code, err)
		}
	}

	// EV_REPを立てるとカーネルがキーリピートを生成する
	if err := registerDevice(deviceFile, uintptr(event.Rep)); err != nil {
		return nil, fmt.Errorf("キーリピート(EV_REP)の登録に失敗しました: %w", err)
	}

	return createUsbDevice(deviceFile, newUserDev(name, 0x0818))
}

func newUserDev(name []byte, product uint16) UserDev {
	return UserDev{
		Name: toUinputName(name),
		ID: InputID{
			Bustype: BusVirtual,
			Vendor:  0x4711,
			Product: product,
			Version: 1,
		},
	}
}

// デバイスファイルを作成する
func createDeviceFile(path string) (*os.File, error) {
	deviceFile, err := os.OpenFile(path, syscall.O_WRONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}
	return deviceFile, nil
}

// デバイスを解放する
func releaseDevice(deviceFile *os.File) error {
	return utils.IOCtl(deviceFile, DevDestroy, uintptr(0))
}

// デバイスを登録する。失敗した場合はファイルを閉じる
func registerDevice(deviceFile *os.File, evType uintptr) error {
	err := utils.IOCtl(deviceFile, SetEvBit, evType)
	if err != nil {
		defer deviceFile.Close()
		if rerr := releaseDevice(deviceFile); rerr != nil {
			return fmt.Errorf("デバイスを解放するのに失敗しました: %w", rerr)
		}
		return fmt.Errorf("イベント種別 %d を登録できませんでした: %w", evType, err)
	}
	return nil
}

// USBデバイスを作成する
func createUsbDevice(deviceFile *os.File, dev UserDev) (*os.File, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, dev); err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("ユーザーデバイスバッファの書き込みに失敗しました: %w", err)
	}
	if _, err := deviceFile.Write(buf.Bytes()); err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイス構造体をデバイスファイルに書き込むのに失敗しました: %w", err)
	}

	if err := utils.IOCtl(deviceFile, DevCreate, uintptr(0)); err != nil {
		_ = deviceFile.Close()
		return nil, fmt.Errorf("デバイスの作成に失敗しました: %w", err)
	}

	return deviceFile, nil
}

// イベントを書き込む
func writeEvents(deviceFile *os.File, events []event.Event) error {
	buf := new(bytes.Buffer)
	for _, ev := range events {
		if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
			return fmt.Errorf("イベントをバッファに書き込むのに失敗しました: %w", err)
		}
	}
	if _, err := deviceFile.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("イベントの書き込みに失敗しました: %w", err)
	}
	return nil
}

// 名前をuinput用の固定長配列に変換する
func toUinputName(name []byte) [MaxNameSize]byte {
	var fixedSizeName [MaxNameSize]byte
	copy(fixedSizeName[:], name)
	return fixedSizeName
}
