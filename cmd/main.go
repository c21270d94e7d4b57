package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nagamine-git/way-thumbsense/internal/config"
	"github.com/nagamine-git/way-thumbsense/internal/logging"
)

var (
	configPath string
	logLevel   string
)

// rootCmd は引数なしで起動されたときに run と同じ動作をする
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Turn keys into mouse buttons while a thumb rests on the touchpad",
	Long: `way-thumbsense watches the touchpad and the keyboard at the same time.
While a finger rests on the touchpad, mapped keys become mouse clicks
(click mode) or the touch itself holds down a modifier key (modifier mode).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemap(cmd, &rootRunOptions)
	},
}

var rootRunOptions runOptions

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	addRunFlags(rootCmd, &rootRunOptions)

	rootCmd.AddCommand(runCmd, devicesCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig は設定ファイルを読み込む。ファイルがなければデフォルト設定を書き出す
func loadConfig() (*config.Config, string, error) {
	cfgPath := configPath
	if cfgPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("デフォルト設定ディレクトリの取得に失敗しました: %w", err)
		}
		cfgPath = p
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfgPath, nil
}

// newLogger は設定に従ってロガーを作り、デフォルトロガーにも設定する
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
