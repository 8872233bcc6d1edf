// Package config アプリケーション設定の読み込みと検証を担う
//
// 設定はYAMLファイル（省略可）とデフォルト値から組み立てられ、一部の
// 項目は環境変数で上書きできる。カメラ一覧はプロセスの生存期間中は
// 不変として扱う。変更の反映にはワーカーの作り直し（再起動）が必要
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath は設定ファイルのデフォルトパス
const DefaultPath = "mihari.yaml"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cameras   []CameraConfig  `yaml:"cameras"`
	Motion    MotionConfig    `yaml:"motion"`
	Objects   ObjectConfig    `yaml:"objects"`
	Recording RecordingConfig `yaml:"recording"`
	Events    EventConfig     `yaml:"events"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig は個別カメラの設定
type CameraConfig struct {
	ID      string `yaml:"id"`      // ソースの一意識別子
	Name    string `yaml:"name"`    // 表示名
	Source  string `yaml:"source"`  // デバイス番号（例: "0"）またはストリームURI
	Enabled bool   `yaml:"enabled"` // 起動時にワーカーを作るか
}

// MotionConfig は動き検知の調整項目
type MotionConfig struct {
	// CooldownSeconds は動きが途絶えてから自動録画を止めるまでの秒数
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
	// MinContourArea は動きとみなす輪郭の最小ピクセル面積
	MinContourArea float64 `yaml:"min_contour_area"`
}

// ObjectConfig は物体検知の調整項目
type ObjectConfig struct {
	// Enabled は起動時に物体検知を有効にするか
	Enabled bool `yaml:"enabled"`
	// ConfidenceThreshold は採用する検知の最小信頼度（推論エンジンに渡す）
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// ClassesFilter は検知対象を絞るクラス名（空なら全クラス）
	ClassesFilter []string `yaml:"classes_filter"`
	// AutoRecordClasses は検知したら自動録画を始めるクラス名
	AutoRecordClasses []string `yaml:"auto_record_classes"`
	// IntervalSeconds は推論の実行間隔の秒数
	IntervalSeconds float64 `yaml:"interval_seconds"`
}

// RecordingConfig は録画関連の設定
type RecordingConfig struct {
	Folder string `yaml:"folder"` // 録画ファイルの保存先フォルダ
}

// EventConfig はイベントログの設定
type EventConfig struct {
	File string `yaml:"file"` // イベントログ（JSON Lines）の追記先
}

// Load は設定を読み込む
// pathが空の場合はDefaultPathを使う。ファイルが存在しなければデフォルト値の
// まま進み、存在すればデフォルト値に上書きする形で読み込む
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 8080),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Cameras: []CameraConfig{
			{ID: "webcam", Name: "Webcam", Source: "0", Enabled: true},
		},
		Motion: MotionConfig{
			CooldownSeconds: 5.0,
			MinContourArea:  500,
		},
		Objects: ObjectConfig{
			Enabled:             false,
			ConfidenceThreshold: 0.5,
			IntervalSeconds:     0.5,
		},
		Recording: RecordingConfig{
			Folder: "gravacoes",
		},
		Events: EventConfig{
			File: "events.jsonl",
		},
	}

	if path == "" {
		path = getEnvOrDefault("MIHARI_CONFIG", DefaultPath)
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗 (%s): %w", path, err)
	}

	// 環境変数はファイルより優先する
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := getEnvAsIntOrDefault("PORT", 0); port != 0 {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}
	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Motion.CooldownSeconds <= 0 {
		return fmt.Errorf("無効なクールダウン秒数: %g", c.Motion.CooldownSeconds)
	}
	if c.Motion.MinContourArea <= 0 {
		return fmt.Errorf("無効な最小輪郭面積: %g", c.Motion.MinContourArea)
	}
	if c.Objects.IntervalSeconds <= 0 {
		return fmt.Errorf("無効な物体検知間隔: %g", c.Objects.IntervalSeconds)
	}
	if c.Objects.ConfidenceThreshold < 0 || c.Objects.ConfidenceThreshold > 1 {
		return fmt.Errorf("無効な信頼度しきい値: %g", c.Objects.ConfidenceThreshold)
	}
	if c.Recording.Folder == "" {
		return fmt.Errorf("録画フォルダが設定されていません")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("カメラIDが空です")
		}
		if seen[cam.ID] {
			return fmt.Errorf("カメラID %s が重複しています", cam.ID)
		}
		seen[cam.ID] = true
		if cam.Source == "" {
			return fmt.Errorf("カメラ %s のソースが設定されていません", cam.ID)
		}
	}
	return nil
}

// MotionCooldown はクールダウンをtime.Durationで返す
func (c *Config) MotionCooldown() time.Duration {
	return time.Duration(c.Motion.CooldownSeconds * float64(time.Second))
}

// DetectionInterval は物体検知間隔をtime.Durationで返す
func (c *Config) DetectionInterval() time.Duration {
	return time.Duration(c.Objects.IntervalSeconds * float64(time.Second))
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
