package remap

import (
	"fmt"

	"github.com/nagamine-git/way-thumbsense/internal/event"
)

// TouchState はタッチパッドの状態
type TouchState struct {
	FingerCount uint8
}

func (s TouchState) IsTouching() bool {
	return s.FingerCount > 0
}

// KeyCode はリマップ対象になり得るキーのevdevコード
type KeyCode uint16

const (
	KeyJ        KeyCode = event.KeyJ
	KeyK        KeyCode = event.KeyK
	KeyL        KeyCode = event.KeyL
	KeyLeftMeta KeyCode = event.KeyLeftMeta
)

// KeyEvent はキーの押下または解放。リピートはここに来る前に捨てる
type KeyEvent struct {
	Code    KeyCode
	Pressed bool
}

func Press(code KeyCode) KeyEvent {
	return KeyEvent{Code: code, Pressed: true}
}

func Release(code KeyCode) KeyEvent {
	return KeyEvent{Code: code, Pressed: false}
}

func (e KeyEvent) String() string {
	if e.Pressed {
		return fmt.Sprintf("Press(%d)", e.Code)
	}
	return fmt.Sprintf("Release(%d)", e.Code)
}

// MouseButton は仮想マウスのボタン
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

// evdevのボタンコード
func (b MouseButton) Code() uint16 {
	switch b {
	case ButtonRight:
		return event.MouseBtnRight
	case ButtonMiddle:
		return event.MouseBtnMiddle
	default:
		return event.MouseBtnLeft
	}
}

func (b MouseButton) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return fmt.Sprintf("button(%d)", int(b))
}

// ParseMouseButton は設定ファイルのボタン名を解釈する
func ParseMouseButton(name string) (MouseButton, error) {
	switch name {
	case "left":
		return ButtonLeft, nil
	case "right":
		return ButtonRight, nil
	case "middle":
		return ButtonMiddle, nil
	}
	return 0, fmt.Errorf("unknown mouse button %q", name)
}

// ActionKind は出力アクションの種類
type ActionKind int

const (
	ActionPassThrough ActionKind = iota
	ActionMouseClick
	ActionMouseRelease
	ActionForwardKey
)

func (k ActionKind) String() string {
	switch k {
	case ActionPassThrough:
		return "passthrough"
	case ActionMouseClick:
		return "mouse_click"
	case ActionMouseRelease:
		return "mouse_release"
	case ActionForwardKey:
		return "forward_key"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// OutputAction は出力側に適用する1つの効果
// Kind によって意味のあるフィールドが決まる
type OutputAction struct {
	Kind    ActionKind
	Button  MouseButton // MouseClick / MouseRelease
	Code    KeyCode     // ForwardKey
	Pressed bool        // ForwardKey
	Event   KeyEvent    // PassThrough
}

func MouseClick(b MouseButton) OutputAction {
	return OutputAction{Kind: ActionMouseClick, Button: b}
}

func MouseRelease(b MouseButton) OutputAction {
	return OutputAction{Kind: ActionMouseRelease, Button: b}
}

func ForwardKey(code KeyCode, pressed bool) OutputAction {
	return OutputAction{Kind: ActionForwardKey, Code: code, Pressed: pressed}
}

func PassThrough(ev KeyEvent) OutputAction {
	return OutputAction{Kind: ActionPassThrough, Event: ev}
}

func (a OutputAction) String() string {
	switch a.Kind {
	case ActionMouseClick, ActionMouseRelease:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Button)
	case ActionForwardKey:
		return fmt.Sprintf("%s(%d, %t)", a.Kind, a.Code, a.Pressed)
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Event)
	}
}
