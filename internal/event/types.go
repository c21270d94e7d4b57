package event

import "syscall"

// イベントタイプの定数（input-event-codes.hより）
const (
	Syn = 0x00 // 同期イベント
	Key = 0x01 // キーイベント
	Rel = 0x02 // 相対座標イベント
	Abs = 0x03 // 絶対座標イベント
	Msc = 0x04 // その他のイベント
	Rep = 0x14 // キーリピート設定

	RelX = 0x0 // X軸の相対移動
	RelY = 0x1 // Y軸の相対移動

	AbsX           = 0x00 // X軸の絶対座標
	AbsY           = 0x01 // Y軸の絶対座標
	AbsMtSlot      = 0x2f // マルチタッチスロット
	AbsMtPositionX = 0x35 // マルチタッチのX座標
	AbsMtPositionY = 0x36 // マルチタッチのY座標

	SynReport  = 0 // イベント報告の同期
	SynDropped = 3 // カーネル側のバッファ溢れ

	MouseBtnLeft     = 0x110 // マウス左ボタン
	MouseBtnRight    = 0x111 // マウス右ボタン
	MouseBtnMiddle   = 0x112 // マウス中ボタン
	BtnToolFinger    = 0x145 // 指1本
	BtnTouch         = 0x14a // タッチイベント
	BtnToolDoubletap = 0x14d // 指2本
	BtnToolTripletap = 0x14e // 指3本
	BtnToolQuadtap   = 0x14f // 指4本
	BtnToolQuinttap  = 0x148 // 指5本

	KeyA        = 30
	KeyJ        = 36
	KeyK        = 37
	KeyL        = 38
	KeyLeftMeta = 125
	KeyMax      = 0x2ff
)

// キーイベントの値
const (
	ValueRelease = 0
	ValuePress   = 1
	ValueRepeat  = 2
)

// Event は入力イベントを表す構造体
// uinputへの書き込みにもそのまま使うため、レイアウトはカーネルのinput_eventと同じ
type Event struct {
	Time  syscall.Timeval // イベント発生時刻
	Type  uint16          // イベントタイプ
	Code  uint16          // イベントコード
	Value int32           // イベント値
}

// IsKey はキー/ボタンイベントかどうかを返す
func (e Event) IsKey() bool {
	return e.Type == Key
}

// IsAbs は絶対座標イベントかどうかを返す
func (e Event) IsAbs() bool {
	return e.Type == Abs
}

// FingerCount はBTN_TOOL_*コードが表す指の本数を返す。該当しない場合は0
func FingerCount(code uint16) uint8 {
	switch code {
	case BtnToolFinger:
		return 1
	case BtnToolDoubletap:
		return 2
	case BtnToolTripletap:
		return 3
	case BtnToolQuadtap:
		return 4
	case BtnToolQuinttap:
		return 5
	}
	return 0
}
