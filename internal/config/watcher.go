package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher は設定ファイルの変更を監視し、読み直した設定をコールバックに渡す
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
	logger   *slog.Logger
	debounce time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher は新しいWatcherを作成する
// エディタは一時ファイルを経由して置き換えることが多いので、ファイルではなくディレクトリを監視する
func NewWatcher(path string, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:  watcher,
		path:     abs,
		onChange: onChange,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start は監視を開始する
func (w *Watcher) Start() {
	w.logger.Info("設定ファイルの監視を開始します", "path", w.path)
	go w.watchEvents()
}

// Stop は監視を停止する
func (w *Watcher) Stop() {
	close(w.stopChan)
	<-w.doneChan
	w.watcher.Close()
}

// watchEvents はfsnotifyのイベントを監視する
func (w *Watcher) watchEvents() {
	defer close(w.doneChan)

	// 連続したイベントをまとめて1回だけ読み直す
	eventTimer := time.NewTimer(w.debounce)
	eventTimer.Stop()
	pendingReload := false

	for {
		select {
		case <-w.stopChan:
			eventTimer.Stop()
			return

		case <-eventTimer.C:
			if pendingReload {
				pendingReload = false
				w.reload()
			}

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !pendingReload {
				pendingReload = true
				eventTimer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("設定ファイルの監視でエラーが発生しました", "error", err)
		}
	}
}

// reload は設定を読み直す。不正な設定は無視して以前の設定を使い続ける
func (w *Watcher) reload() {
	cfg, err := readConfig(w.path)
	if err != nil {
		w.logger.Warn("設定ファイルを読み直せませんでした。以前の設定を使い続けます", "path", w.path, "error", err)
		return
	}
	w.logger.Info("設定ファイルを読み直しました", "path", w.path)
	w.onChange(cfg)
}
