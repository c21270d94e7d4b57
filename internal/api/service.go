package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nagamine-git/way-thumbsense/internal/config"
	"github.com/nagamine-git/way-thumbsense/internal/device"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

// キーボードを専有する前にキーが離されるのを待つ最大時間
const releaseWaitTimeout = 3 * time.Second

// ServiceStatus はサービスの状態を表す
type ServiceStatus struct {
	Running  bool        `json:"running"`
	Policy   string      `json:"policy"`
	Touchpad string      `json:"touchpad"`
	Keyboard string      `json:"keyboard"`
	Stats    remap.Stats `json:"stats"`
	LastErr  string      `json:"last_error,omitempty"`
}

// RemapService はリマップエンジンとデバイスの寿命を管理する構造体
type RemapService struct {
	cfg         *config.Config
	logger      *slog.Logger
	statusMutex sync.RWMutex
	running     bool
	engine      *remap.Engine
	closers     []io.Closer
	touchpad    string
	keyboard    string
	done        chan struct{}
	lastErr     error
}

// NewRemapService は新しいリマップサービスを作成する
func NewRemapService(cfg *config.Config, logger *slog.Logger) *RemapService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemapService{
		cfg:    cfg,
		logger: logger,
	}
}

// Start はデバイスを検出して開き、リマップを開始する
// 座標範囲が取得できない場合などはここでエラーになる
func (s *RemapService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("service is already running")
	}

	cfg := s.cfg
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	touchpadDevice, err := device.FindTouchpad(cfg.Devices.Touchpad)
	if err != nil {
		return fmt.Errorf("タッチパッドが見つかりませんでした: %w", err)
	}
	keyboardDevice, err := device.FindKeyboard(cfg.Devices.Keyboard)
	if err != nil {
		return fmt.Errorf("キーボードが見つかりませんでした: %w", err)
	}
	s.logger.Info("使用するタッチパッド", "name", touchpadDevice.Name, "path", touchpadDevice.Path)
	s.logger.Info("使用するキーボード", "name", keyboardDevice.Name, "path", keyboardDevice.Path)

	touchpad, err := device.OpenInput(touchpadDevice.Path)
	if err != nil {
		return err
	}
	geometry, err := touchpad.Geometry()
	if err != nil {
		_ = touchpad.Close()
		return fmt.Errorf("タッチパッドの座標範囲を取得できませんでした: %w", err)
	}
	s.logger.Info("タッチパッドの座標範囲",
		"min_x", geometry.X.Min, "max_x", geometry.X.Max,
		"min_y", geometry.Y.Min, "max_y", geometry.Y.Max,
		"width", geometry.Width(), "height", geometry.Height())

	keyboard, err := device.OpenInput(keyboardDevice.Path)
	if err != nil {
		_ = touchpad.Close()
		return err
	}
	if cfg.Devices.GrabKeyboard {
		if err := device.WaitForRelease(keyboardDevice.Path, releaseWaitTimeout); err != nil {
			s.logger.Warn("キーが押されたままキーボードを専有します", "error", err)
		}
		if err := keyboard.Grab(); err != nil {
			_ = touchpad.Close()
			_ = keyboard.Close()
			return err
		}
	}

	sink, err := device.CreateVirtualDevice(cfg.Devices.UinputPath)
	if err != nil {
		_ = touchpad.Close()
		_ = keyboard.Close()
		return fmt.Errorf("仮想デバイスの作成に失敗しました: %w", err)
	}
	s.logger.Info("仮想デバイスを作成しました", "uinput", cfg.Devices.UinputPath)

	engine := remap.NewEngine(geometry, cfg.ExclusionZones(), policy, sink,
		remap.WithLogger(s.logger),
		remap.WithPassThrough(cfg.Devices.GrabKeyboard))

	s.touchpad = touchpadDevice.Name
	s.keyboard = keyboardDevice.Name
	// 入力デバイスを先に閉じて読み取りループを止め、最後に仮想デバイスを破棄する
	s.run(engine, touchpad, keyboard, []io.Closer{touchpad, keyboard, sink})
	return nil
}

// run は読み取りループを開始する。statusMutex を保持した状態で呼ぶ
func (s *RemapService) run(engine *remap.Engine, touchpad, keyboard remap.Source, closers []io.Closer) {
	s.engine = engine
	s.closers = closers
	s.done = make(chan struct{})
	s.lastErr = nil
	s.running = true

	done := s.done
	go func() {
		err := engine.Run(touchpad, keyboard)

		s.statusMutex.Lock()
		s.lastErr = err
		s.running = false
		s.statusMutex.Unlock()

		s.logger.Info("リマップを停止しました")
		close(done)
	}()

	s.logger.Info("リマップを開始しました", "policy", engine.Policy().Name())
}

// Stop はデバイスを閉じてリマップを停止する
func (s *RemapService) Stop() error {
	s.statusMutex.Lock()
	if s.engine == nil {
		s.statusMutex.Unlock()
		return fmt.Errorf("service is not running")
	}
	closers := s.closers
	done := s.done
	s.closers = nil
	s.engine = nil
	s.statusMutex.Unlock()

	// 入力デバイスを閉じるとブロック中の読み取りがエラーで戻る
	var errs []error
	for i, c := range closers {
		if i == len(closers)-1 {
			<-done
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(closers) == 0 {
		<-done
	}
	return errors.Join(errs...)
}

// Done は両方の読み取りループが終了すると閉じられる
func (s *RemapService) Done() <-chan struct{} {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.done
}

// IsRunning はサービスが実行中かどうかを返す
func (s *RemapService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// UpdateConfig は設定を更新する
// 実行中のエンジンには除外領域だけを反映する。それ以外の変更は再起動後に有効になる
func (s *RemapService) UpdateConfig(cfg *config.Config) {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	s.cfg = cfg
	if s.engine != nil {
		s.engine.UpdateZones(cfg.ExclusionZones())
	}
}

// GetConfig は現在の設定を返す
func (s *RemapService) GetConfig() *config.Config {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.cfg
}

// Status はサービスの状態を返す
func (s *RemapService) Status() ServiceStatus {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()

	status := ServiceStatus{
		Running:  s.running,
		Touchpad: s.touchpad,
		Keyboard: s.keyboard,
	}
	if s.engine != nil {
		status.Policy = s.engine.Policy().Name()
		status.Stats = s.engine.Stats()
	}
	if s.lastErr != nil {
		status.LastErr = s.lastErr.Error()
	}
	return status
}
