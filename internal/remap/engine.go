package remap

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nagamine-git/way-thumbsense/internal/event"
)

// Source はデバイスからイベントをまとめて読み出す
type Source interface {
	// FetchEvents は次のSYN_REPORTまでのイベントを返す。イベントが来るまでブロックする
	FetchEvents() ([]event.Event, error)
}

// Sink は仮想デバイスにマウス/キーボードのイベントを合成する
type Sink interface {
	EmitMouse(button MouseButton, pressed bool) error
	EmitKey(code KeyCode, pressed bool) error
}

// Stats はエンジンの動作状況のスナップショット
type Stats struct {
	Touching        bool   `json:"touching"`
	FingerCount     uint8  `json:"finger_count"`
	Touches         uint64 `json:"touches"`
	ExcludedTouches uint64 `json:"excluded_touches"`
	MouseClicks     uint64 `json:"mouse_clicks"`
	MouseReleases   uint64 `json:"mouse_releases"`
	ForwardedKeys   uint64 `json:"forwarded_keys"`
	PassThroughs    uint64 `json:"passthroughs"`
	RepeatsDropped  uint64 `json:"repeats_dropped"`
	EmitErrors      uint64 `json:"emit_errors"`
	Tracker         string `json:"tracker"`
}

type counters struct {
	touches         atomic.Uint64
	excludedTouches atomic.Uint64
	mouseClicks     atomic.Uint64
	mouseReleases   atomic.Uint64
	forwardedKeys   atomic.Uint64
	passThroughs    atomic.Uint64
	repeatsDropped  atomic.Uint64
	emitErrors      atomic.Uint64
}

// Engine はタッチパッドとキーボードの2つのイベント列を結びつける
//
// HandleTouchpadBatch と HandleKeyboardBatch はそれぞれ1つのゴルーチンからだけ呼ぶこと。
// 2つのループの間で共有されるのは公開中のタッチ状態(指の本数)だけ。
type Engine struct {
	policy      Policy
	sink        Sink
	logger      *slog.Logger
	passThrough bool
	onTouch     func(TouchState)

	// 共有のタッチ状態 (finger_count)。有効なセッション中だけ0以外
	touch atomic.Uint32

	// タッチパッドのループだけが触る
	tracker     *TouchTracker
	presence    bool
	active      bool
	toolFingers uint8
	slot        int32
	zoneUpdates chan ExclusionZones
	debugInfo   atomic.Value

	// キーボードのループだけが触る
	pressed map[KeyCode]OutputAction

	stats counters
}

// Option はエンジンの設定を変更する
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPassThrough はPassThroughを仮想キーボードに転送するかを指定する
// キーボードを専有している場合は転送しないとキー入力が失われる
func WithPassThrough(enabled bool) Option {
	return func(e *Engine) {
		e.passThrough = enabled
	}
}

// WithTouchObserver は公開中のタッチ状態が変わるたびに呼ばれる関数を登録する
// タッチパッドのループから同期的に呼ばれるので、ブロックしないこと
func WithTouchObserver(fn func(TouchState)) Option {
	return func(e *Engine) {
		e.onTouch = fn
	}
}

// NewEngine は新しいリマップエンジンを作成する
func NewEngine(geometry DeviceGeometry, zones ExclusionZones, policy Policy, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		policy:      policy,
		sink:        sink,
		logger:      slog.Default(),
		tracker:     NewTouchTracker(geometry, zones),
		zoneUpdates: make(chan ExclusionZones, 1),
		pressed:     make(map[KeyCode]OutputAction),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.debugInfo.Store(e.tracker.DebugInfo())
	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// TouchState は現在公開されているタッチ状態を返す
func (e *Engine) TouchState() TouchState {
	return TouchState{FingerCount: uint8(e.touch.Load())}
}

// UpdateZones は除外領域を差し替える。タッチパッドのループが次のバッチの前に反映する
func (e *Engine) UpdateZones(zones ExclusionZones) {
	select {
	case e.zoneUpdates <- zones:
	default:
		// 未反映の古い設定を捨てて新しい設定を入れる
		select {
		case <-e.zoneUpdates:
		default:
		}
		select {
		case e.zoneUpdates <- zones:
		default:
		}
	}
}

// Stats は統計情報のスナップショットを返す
func (e *Engine) Stats() Stats {
	touch := e.TouchState()
	info, _ := e.debugInfo.Load().(string)
	return Stats{
		Touching:        touch.IsTouching(),
		FingerCount:     touch.FingerCount,
		Touches:         e.stats.touches.Load(),
		ExcludedTouches: e.stats.excludedTouches.Load(),
		MouseClicks:     e.stats.mouseClicks.Load(),
		MouseReleases:   e.stats.mouseReleases.Load(),
		ForwardedKeys:   e.stats.forwardedKeys.Load(),
		PassThroughs:    e.stats.passThroughs.Load(),
		RepeatsDropped:  e.stats.repeatsDropped.Load(),
		EmitErrors:      e.stats.emitErrors.Load(),
		Tracker:         info,
	}
}

// HandleTouchpadBatch はタッチパッドの1フレーム分のイベントを処理する
//
// 先に座標をすべて反映し、その後でタッチの開始/終了を受信順に処理する。
// 除外領域の判定が常にそのフレームの最新座標を見るようにするため。
func (e *Engine) HandleTouchpadBatch(events []event.Event) {
	e.applyZoneUpdate()

	for _, ev := range events {
		if !ev.IsAbs() {
			continue
		}
		switch ev.Code {
		case event.AbsX:
			e.tracker.UpdateX(ev.Value)
		case event.AbsY:
			e.tracker.UpdateY(ev.Value)
		case event.AbsMtSlot:
			e.slot = ev.Value
		case event.AbsMtPositionX:
			if e.slot == 0 {
				e.tracker.UpdateX(ev.Value)
			}
		case event.AbsMtPositionY:
			if e.slot == 0 {
				e.tracker.UpdateY(ev.Value)
			}
		}
	}

	for _, ev := range events {
		if !ev.IsKey() {
			continue
		}
		switch ev.Code {
		case event.BtnTouch:
			e.setPresence(ev.Value != event.ValueRelease)
		default:
			if n := event.FingerCount(ev.Code); n > 0 {
				e.updateFingers(n, ev.Value != event.ValueRelease)
			}
		}
	}

	e.debugInfo.Store(e.tracker.DebugInfo())
}

func (e *Engine) applyZoneUpdate() {
	select {
	case zones := <-e.zoneUpdates:
		e.tracker.SetZones(zones)
		e.logger.Info("除外領域を更新しました",
			"top", zones.Top, "bottom", zones.Bottom, "left", zones.Left, "right", zones.Right)
	default:
	}
}

// setPresence はタッチの有無が変化したときだけ処理する
func (e *Engine) setPresence(touching bool) {
	if touching == e.presence {
		return
	}
	e.presence = touching

	if touching {
		e.stats.touches.Add(1)
		if e.tracker.IsInExclusionZone() {
			e.active = false
			e.stats.excludedTouches.Add(1)
			e.logger.Debug("除外領域でのタッチを無視します", "tracker", e.tracker.DebugInfo())
			return
		}
		e.active = true
		e.publish()
		e.logger.Debug("タッチ開始", "fingers", e.fingerCount(), "tracker", e.tracker.DebugInfo())
		if action, ok := e.policy.TouchStarted(); ok {
			e.apply(action)
		}
		return
	}

	wasActive := e.active
	e.active = false
	e.setTouch(0)
	if wasActive {
		e.logger.Debug("タッチ終了")
		if action, ok := e.policy.TouchEnded(); ok {
			e.apply(action)
		}
	}
	e.tracker.Reset()
}

func (e *Engine) updateFingers(n uint8, down bool) {
	switch {
	case down:
		e.toolFingers = n
	case e.toolFingers == n:
		e.toolFingers = 0
	}
	if e.active {
		e.publish()
	}
}

func (e *Engine) fingerCount() uint8 {
	if e.toolFingers == 0 {
		return 1
	}
	return e.toolFingers
}

func (e *Engine) publish() {
	e.setTouch(e.fingerCount())
}

func (e *Engine) setTouch(fingers uint8) {
	if old := e.touch.Swap(uint32(fingers)); old != uint32(fingers) && e.onTouch != nil {
		e.onTouch(TouchState{FingerCount: fingers})
	}
}

// HandleKeyboardBatch はキーボードの1フレーム分のイベントを処理する
// 押下(1)と解放(0)だけを扱い、リピート(2)は捨てる
func (e *Engine) HandleKeyboardBatch(events []event.Event) {
	for _, ev := range events {
		if !ev.IsKey() {
			continue
		}
		var ke KeyEvent
		switch ev.Value {
		case event.ValuePress:
			ke = Press(KeyCode(ev.Code))
		case event.ValueRelease:
			ke = Release(KeyCode(ev.Code))
		case event.ValueRepeat:
			e.stats.repeatsDropped.Add(1)
			continue
		default:
			continue
		}
		e.apply(e.resolveKey(ke))
	}
}

// resolveKey はキーの解放を押下時と同じ経路で処理する
// 押下と解放の間にタッチ状態が変わってもマウスボタンやキーが押されたままにならない
func (e *Engine) resolveKey(ke KeyEvent) OutputAction {
	if !ke.Pressed {
		if prev, ok := e.pressed[ke.Code]; ok {
			delete(e.pressed, ke.Code)
			switch prev.Kind {
			case ActionMouseClick:
				return MouseRelease(prev.Button)
			case ActionForwardKey:
				return ForwardKey(prev.Code, false)
			case ActionPassThrough:
				return PassThrough(ke)
			}
		}
	}

	action := e.policy.MapKey(ke, e.TouchState())
	if ke.Pressed {
		e.pressed[ke.Code] = action
	}
	return action
}

// apply はアクションを出力デバイスに送る
// 失敗してもログに残すだけで、状態は巻き戻さない
func (e *Engine) apply(action OutputAction) {
	var err error
	switch action.Kind {
	case ActionMouseClick:
		e.stats.mouseClicks.Add(1)
		e.logger.Debug("マウスクリック", "button", action.Button)
		err = e.sink.EmitMouse(action.Button, true)
	case ActionMouseRelease:
		e.stats.mouseReleases.Add(1)
		e.logger.Debug("マウスリリース", "button", action.Button)
		err = e.sink.EmitMouse(action.Button, false)
	case ActionForwardKey:
		e.stats.forwardedKeys.Add(1)
		e.logger.Debug("修飾キー", "code", action.Code, "pressed", action.Pressed)
		err = e.sink.EmitKey(action.Code, action.Pressed)
	case ActionPassThrough:
		e.stats.passThroughs.Add(1)
		if !e.passThrough {
			return
		}
		err = e.sink.EmitKey(action.Event.Code, action.Event.Pressed)
	}
	if err != nil {
		e.stats.emitErrors.Add(1)
		e.logger.Warn("仮想デバイスへの出力に失敗しました", "action", action.String(), "error", err)
	}
}

// RunTouchpad はタッチパッドのイベントを読み続ける。読み取りエラーで終了する
func (e *Engine) RunTouchpad(src Source) error {
	for {
		events, err := src.FetchEvents()
		if err != nil {
			e.logger.Error("タッチパッドの読み取りに失敗しました", "error", err)
			return fmt.Errorf("touchpad stream: %w", err)
		}
		e.HandleTouchpadBatch(events)
	}
}

// RunKeyboard はキーボードのイベントを読み続ける。読み取りエラーで終了する
func (e *Engine) RunKeyboard(src Source) error {
	for {
		events, err := src.FetchEvents()
		if err != nil {
			e.logger.Error("キーボードの読み取りに失敗しました", "error", err)
			return fmt.Errorf("keyboard stream: %w", err)
		}
		e.HandleKeyboardBatch(events)
	}
}

// Run は2つの読み取りループを並行に動かし、両方が終わるまで待つ
// 片方が終わってももう片方は止めない
func (e *Engine) Run(touchpad, keyboard Source) error {
	var (
		wg          sync.WaitGroup
		touchpadErr error
		keyboardErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		touchpadErr = e.RunTouchpad(touchpad)
	}()
	go func() {
		defer wg.Done()
		keyboardErr = e.RunKeyboard(keyboard)
	}()
	wg.Wait()
	return errors.Join(touchpadErr, keyboardErr)
}
