package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/nagamine-git/way-thumbsense/internal/event"
	"github.com/nagamine-git/way-thumbsense/internal/logging"
	"github.com/nagamine-git/way-thumbsense/internal/remap"
)

// AppName は設定ディレクトリ名にも使う
const AppName = "way-thumbsense"

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Exclusion ExclusionConfig `toml:"exclusion" json:"exclusion"`
	Mapping   MappingConfig   `toml:"mapping" json:"mapping"`
	Devices   DevicesConfig   `toml:"devices" json:"devices"`
	Log       LogConfig       `toml:"log" json:"log"`
	API       APIConfig       `toml:"api" json:"api"`
}

// ExclusionConfig は各辺から除外する割合 (0.0 - 100.0, 0 で無効)
type ExclusionConfig struct {
	Top    float64 `toml:"top" json:"top"`
	Bottom float64 `toml:"bottom" json:"bottom"`
	Left   float64 `toml:"left" json:"left"`
	Right  float64 `toml:"right" json:"right"`
}

// MappingConfig はキーの変換方法の設定
type MappingConfig struct {
	Mode        string          `toml:"mode" json:"mode"`
	ModifierKey int             `toml:"modifier_key" json:"modifier_key"`
	Buttons     []ButtonMapping `toml:"buttons" json:"buttons"`
}

// ButtonMapping はタッチ中にマウスボタンとして扱うキー
type ButtonMapping struct {
	Key    int    `toml:"key" json:"key"`
	Button string `toml:"button" json:"button"`
}

// DevicesConfig は使用するデバイスの設定
type DevicesConfig struct {
	Touchpad     string `toml:"touchpad" json:"touchpad"`
	Keyboard     string `toml:"keyboard" json:"keyboard"`
	GrabKeyboard bool   `toml:"grab_keyboard" json:"grab_keyboard"`
	UinputPath   string `toml:"uinput_path" json:"uinput_path"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
}

// APIConfig は状態確認用APIサーバーの設定
type APIConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	Port    int  `toml:"port" json:"port"`
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Mapping: MappingConfig{
			Mode:        remap.ModeClick,
			ModifierKey: event.KeyLeftMeta,
			Buttons: []ButtonMapping{
				{Key: event.KeyJ, Button: "left"},
				{Key: event.KeyK, Button: "right"},
			},
		},
		Devices: DevicesConfig{
			GrabKeyboard: true,
			UinputPath:   "/dev/uinput",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		API: APIConfig{
			Enabled: false,
			Port:    8080,
		},
	}
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultConfigPath はデフォルトの設定ファイルのパスを返す
func DefaultConfigPath() (string, error) {
	dir, err := GetDefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadConfig は設定ファイルから設定を読み込む
func LoadConfig(configPath string) (*Config, error) {
	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	return readConfig(configPath)
}

// readConfig はファイルを読み込むだけで、存在しなくても作成しない
func readConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, fmt.Errorf("failed to decode %s: %w", configPath, err)
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}

// Validate は設定値を検証する
// 除外領域の割合は検証しない。範囲外や重なりは「全面が除外される」として扱う
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	return nil
}

// ExclusionZones はエンジン用の除外領域を返す
func (c *Config) ExclusionZones() remap.ExclusionZones {
	return remap.ExclusionZones{
		Top:    c.Exclusion.Top,
		Bottom: c.Exclusion.Bottom,
		Left:   c.Exclusion.Left,
		Right:  c.Exclusion.Right,
	}
}

// ButtonTable はキーとマウスボタンの対応表を返す
func (c *Config) ButtonTable() (remap.ButtonTable, error) {
	table := make(remap.ButtonTable, len(c.Mapping.Buttons))
	for _, m := range c.Mapping.Buttons {
		if m.Key <= 0 || m.Key > event.KeyMax {
			return nil, fmt.Errorf("invalid key code %d", m.Key)
		}
		button, err := remap.ParseMouseButton(m.Button)
		if err != nil {
			return nil, err
		}
		table[remap.KeyCode(m.Key)] = button
	}
	return table, nil
}

// Policy は設定されたマッピングモードのポリシーを返す
func (c *Config) Policy() (remap.Policy, error) {
	table, err := c.ButtonTable()
	if err != nil {
		return nil, err
	}
	if c.Mapping.Mode == remap.ModeModifier && (c.Mapping.ModifierKey <= 0 || c.Mapping.ModifierKey > event.KeyMax) {
		return nil, fmt.Errorf("invalid modifier key code %d", c.Mapping.ModifierKey)
	}
	return remap.NewPolicy(c.Mapping.Mode, table, remap.KeyCode(c.Mapping.ModifierKey))
}
