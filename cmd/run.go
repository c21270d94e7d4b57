package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nagamine-git/way-thumbsense/internal/api"
	"github.com/nagamine-git/way-thumbsense/internal/config"
)

type runOptions struct {
	mode     string
	touchpad string
	keyboard string
	noGrab   bool
	api      bool
	port     int
}

var runRunOptions runOptions

// runCmd はリマップを開始する
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start remapping keys while the touchpad is touched",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemap(cmd, &runRunOptions)
	},
}

func init() {
	addRunFlags(runCmd, &runRunOptions)
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.mode, "mode", "", "マッピングモード (click, modifier)")
	flags.StringVar(&opts.touchpad, "touchpad", "", "使用するタッチパッドの名前")
	flags.StringVar(&opts.keyboard, "keyboard", "", "使用するキーボードの名前")
	flags.BoolVar(&opts.noGrab, "no-grab", false, "キーボードを専有しない")
	flags.BoolVar(&opts.api, "api", false, "状態確認用のAPIサーバーを起動する")
	flags.IntVar(&opts.port, "port", 8080, "APIサーバーのポート番号")
}

// applyFlags は明示的に指定されたフラグだけで設定を上書きする
func applyFlags(flags *pflag.FlagSet, opts *runOptions, cfg *config.Config) error {
	if flags.Changed("mode") {
		cfg.Mapping.Mode = opts.mode
	}
	if flags.Changed("touchpad") {
		cfg.Devices.Touchpad = opts.touchpad
	}
	if flags.Changed("keyboard") {
		cfg.Devices.Keyboard = opts.keyboard
	}
	if flags.Changed("no-grab") {
		cfg.Devices.GrabKeyboard = !opts.noGrab
	}
	if flags.Changed("api") {
		cfg.API.Enabled = opts.api
	}
	if flags.Changed("port") {
		cfg.API.Port = opts.port
	}
	return cfg.Validate()
}

func runRemap(cmd *cobra.Command, opts *runOptions) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), opts, cfg); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("設定ファイルを読み込みました", "path", cfgPath, "mode", cfg.Mapping.Mode)

	service := api.NewRemapService(cfg, logger)
	if err := service.Start(); err != nil {
		return fmt.Errorf("リマップサービスの起動に失敗しました: %w", err)
	}
	defer func() {
		if err := service.Stop(); err != nil {
			logger.Warn("デバイスのクローズに失敗しました", "error", err)
		}
	}()

	// 設定ファイルの変更は除外領域だけ実行中に反映する
	watcher, err := config.NewWatcher(cfgPath, func(newCfg *config.Config) {
		if applyErr := applyFlags(cmd.Flags(), opts, newCfg); applyErr != nil {
			logger.Warn("読み直した設定を適用できませんでした", "error", applyErr)
			return
		}
		service.UpdateConfig(newCfg)
	}, logger)
	if err != nil {
		logger.Warn("設定ファイルを監視できません", "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	if cfg.API.Enabled {
		server := api.NewServer(service, cfg.API.Port, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("APIサーバーの起動に失敗しました", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Stop(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("シャットダウンします", "signal", sig.String())
		return nil
	case <-service.Done():
		status := service.Status()
		return fmt.Errorf("入力デバイスの読み取りが終了しました: %s", status.LastErr)
	}
}
