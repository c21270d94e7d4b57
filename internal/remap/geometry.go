package remap

import (
	"errors"
	"fmt"
)

// ErrInvalidBounds は軸の範囲が不正な場合のエラー
var ErrInvalidBounds = errors.New("invalid axis bounds")

// AxisBounds はハードウェアが報告する1軸分の座標範囲
type AxisBounds struct {
	Min int32
	Max int32
}

// DeviceGeometry はタッチパッドのX軸・Y軸の範囲
type DeviceGeometry struct {
	X AxisBounds
	Y AxisBounds
}

// NewDeviceGeometry は軸範囲を検証してジオメトリを作成する
func NewDeviceGeometry(x, y AxisBounds) (DeviceGeometry, error) {
	if x.Max <= x.Min {
		return DeviceGeometry{}, fmt.Errorf("%w: x min=%d max=%d", ErrInvalidBounds, x.Min, x.Max)
	}
	if y.Max <= y.Min {
		return DeviceGeometry{}, fmt.Errorf("%w: y min=%d max=%d", ErrInvalidBounds, y.Min, y.Max)
	}
	return DeviceGeometry{X: x, Y: y}, nil
}

// X座標の範囲幅
func (g DeviceGeometry) Width() int32 {
	return g.X.Max - g.X.Min
}

// Y座標の範囲幅
func (g DeviceGeometry) Height() int32 {
	return g.Y.Max - g.Y.Min
}

// ExclusionZones は各辺から除外する割合(パーセンテージ, 0.0 - 100.0)
type ExclusionZones struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// 除外領域なし
func NoExclusion() ExclusionZones {
	return ExclusionZones{}
}

// IsExcluded は座標(x, y)が除外領域に入っているかを判定する
//
// 閾値の基準は max - min ではなく軸の最大値。0以下の割合はその辺を無効にする。
// 向かい合う辺の合計が100を超える場合は全面が除外になるが、エラーにはしない。
func (g DeviceGeometry) IsExcluded(zones ExclusionZones, x, y int32) bool {
	if zones.Left > 0 && x < threshold(g.X.Max, zones.Left) {
		return true
	}
	if zones.Right > 0 && x > threshold(g.X.Max, 100-zones.Right) {
		return true
	}
	if zones.Top > 0 && y < threshold(g.Y.Max, zones.Top) {
		return true
	}
	if zones.Bottom > 0 && y > threshold(g.Y.Max, 100-zones.Bottom) {
		return true
	}
	return false
}

// max * percent / 100 を0方向に切り捨てる
func threshold(max int32, percent float64) int32 {
	return int32(float64(max) * percent / 100)
}
