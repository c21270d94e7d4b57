package remap

import (
	"errors"
	"fmt"
)

// ErrUnknownPolicy は未知のマッピングモードが指定された場合のエラー
var ErrUnknownPolicy = errors.New("unknown mapping policy")

// マッピングモード名
const (
	ModeClick    = "click"
	ModeModifier = "modifier"
)

// ButtonTable はタッチ中にマウスボタンへ変換するキーの表
type ButtonTable map[KeyCode]MouseButton

// DefaultButtonTable は J → 左クリック, K → 右クリック
func DefaultButtonTable() ButtonTable {
	return ButtonTable{
		KeyJ: ButtonLeft,
		KeyK: ButtonRight,
	}
}

// MapKeyEvent はキーイベントをタッチ状態に基づいて変換する
//
//   - 非タッチ: そのままパススルー
//   - タッチ中: 表にあるキーはマウスボタンの押下/解放、ないキーはパススルー
//
// 状態を持たないので、同じ入力には常に同じ結果を返す。
func MapKeyEvent(ev KeyEvent, touch TouchState, table ButtonTable) OutputAction {
	if !touch.IsTouching() {
		return PassThrough(ev)
	}
	button, ok := table[ev.Code]
	if !ok {
		return PassThrough(ev)
	}
	if ev.Pressed {
		return MouseClick(button)
	}
	return MouseRelease(button)
}

// Policy はキーイベントとタッチの開始/終了をどう出力に変換するかを決める
type Policy interface {
	Name() string
	// MapKey はキーイベント1つを出力アクションに変換する
	MapKey(ev KeyEvent, touch TouchState) OutputAction
	// TouchStarted は有効なタッチが始まったときのアクション。なければ false
	TouchStarted() (OutputAction, bool)
	// TouchEnded は有効なタッチが終わったときのアクション。なければ false
	TouchEnded() (OutputAction, bool)
}

// ClickPolicy はタッチ中のキーをマウスクリックに変換する
type ClickPolicy struct {
	Buttons ButtonTable
}

func (p ClickPolicy) Name() string { return ModeClick }

func (p ClickPolicy) MapKey(ev KeyEvent, touch TouchState) OutputAction {
	return MapKeyEvent(ev, touch, p.Buttons)
}

func (p ClickPolicy) TouchStarted() (OutputAction, bool) { return OutputAction{}, false }

func (p ClickPolicy) TouchEnded() (OutputAction, bool) { return OutputAction{}, false }

// ModifierPolicy はタッチそのものを修飾キーの押下として扱う
// キーイベントは常にパススルー
type ModifierPolicy struct {
	Key KeyCode
}

func (p ModifierPolicy) Name() string { return ModeModifier }

func (p ModifierPolicy) MapKey(ev KeyEvent, _ TouchState) OutputAction {
	return PassThrough(ev)
}

func (p ModifierPolicy) TouchStarted() (OutputAction, bool) {
	return ForwardKey(p.Key, true), true
}

func (p ModifierPolicy) TouchEnded() (OutputAction, bool) {
	return ForwardKey(p.Key, false), true
}

// NewPolicy はモード名からポリシーを作成する
func NewPolicy(mode string, buttons ButtonTable, modifier KeyCode) (Policy, error) {
	switch mode {
	case ModeClick, "":
		if buttons == nil {
			buttons = DefaultButtonTable()
		}
		return ClickPolicy{Buttons: buttons}, nil
	case ModeModifier:
		return ModifierPolicy{Key: modifier}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, mode)
}
