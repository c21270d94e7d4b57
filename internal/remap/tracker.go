package remap

import "fmt"

// TouchPosition は最後に分かっている指の座標
type TouchPosition struct {
	X    int32
	Y    int32
	HasX bool
	HasY bool
}

// Known は両方の軸が分かっているかを返す
func (p TouchPosition) Known() bool {
	return p.HasX && p.HasY
}

// TouchTracker はタッチ位置を追跡し、除外領域に入っているかを判定する
//
// タッチパッドの読み取りループだけが所有する。他のゴルーチンから触ってはいけない。
type TouchTracker struct {
	geometry DeviceGeometry
	zones    ExclusionZones
	pos      TouchPosition
}

func NewTouchTracker(geometry DeviceGeometry, zones ExclusionZones) *TouchTracker {
	return &TouchTracker{geometry: geometry, zones: zones}
}

// X座標を更新
func (t *TouchTracker) UpdateX(x int32) {
	t.pos.X = x
	t.pos.HasX = true
}

// Y座標を更新
func (t *TouchTracker) UpdateY(y int32) {
	t.pos.Y = y
	t.pos.HasY = true
}

// 座標をリセット
func (t *TouchTracker) Reset() {
	t.pos = TouchPosition{}
}

func (t *TouchTracker) Position() TouchPosition {
	return t.pos
}

func (t *TouchTracker) Geometry() DeviceGeometry {
	return t.geometry
}

func (t *TouchTracker) Zones() ExclusionZones {
	return t.zones
}

// SetZones は除外領域の設定を差し替える
func (t *TouchTracker) SetZones(zones ExclusionZones) {
	t.zones = zones
}

// IsInExclusionZone は現在のタッチ位置が除外領域にあるかを返す
// どちらかの軸が未確定なら判定できないので false
func (t *TouchTracker) IsInExclusionZone() bool {
	if !t.pos.Known() {
		return false
	}
	return t.geometry.IsExcluded(t.zones, t.pos.X, t.pos.Y)
}

// DebugInfo は現在の座標と除外判定を文字列で返す
func (t *TouchTracker) DebugInfo() string {
	if !t.pos.Known() {
		return "pos: unknown"
	}
	return fmt.Sprintf("pos: (%d, %d) / max: (%d, %d) / excluded: %t",
		t.pos.X, t.pos.Y, t.geometry.X.Max, t.geometry.Y.Max, t.IsInExclusionZone())
}
