package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoadDefaults はファイルなしでのデフォルト設定の読み込みをテストする
func TestConfigLoadDefaults(t *testing.T) {
	// 存在しないパスを指定してデフォルト値を得る
	cfg, err := Load(filepath.Join(t.TempDir(), "nothing.yaml"))
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// カメラ設定の検証
	if len(cfg.Cameras) == 0 {
		t.Error("カメラが設定されていません")
	}

	// 検知設定のデフォルト値を検証
	if cfg.Motion.CooldownSeconds != 5.0 {
		t.Errorf("クールダウンのデフォルト値が不正: %v", cfg.Motion.CooldownSeconds)
	}
	if cfg.Motion.MinContourArea != 500 {
		t.Errorf("最小輪郭面積のデフォルト値が不正: %v", cfg.Motion.MinContourArea)
	}
	if cfg.Objects.Enabled {
		t.Error("物体検知はデフォルトで無効のはず")
	}
	if cfg.Recording.Folder == "" {
		t.Error("録画フォルダが設定されていません")
	}
}

// TestConfigLoadFile はYAMLファイルからの読み込みをテストする
func TestConfigLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mihari.yaml")
	data := `
server:
  port: 9999
cameras:
  - id: entrance
    name: Entrance
    source: rtsp://example.com/stream
    enabled: true
motion:
  cooldown_seconds: 2.5
recording:
  folder: clips
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("ポート番号が反映されていません: %d", cfg.Server.Port)
	}
	if len(cfg.Cameras) != 1 || cfg.Cameras[0].ID != "entrance" {
		t.Errorf("カメラ設定が反映されていません: %+v", cfg.Cameras)
	}
	if cfg.Motion.CooldownSeconds != 2.5 {
		t.Errorf("クールダウンが反映されていません: %v", cfg.Motion.CooldownSeconds)
	}
	if cfg.Recording.Folder != "clips" {
		t.Errorf("録画フォルダが反映されていません: %s", cfg.Recording.Folder)
	}
	// ファイルで触れていない値はデフォルトのまま
	if cfg.Objects.ConfidenceThreshold != 0.5 {
		t.Errorf("信頼度しきい値のデフォルト値が不正: %v", cfg.Objects.ConfidenceThreshold)
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Host: "0.0.0.0", Port: 8080, ReadTimeout: 10 * time.Second},
			Cameras: []CameraConfig{
				{ID: "webcam", Source: "0", Enabled: true},
			},
			Motion:    MotionConfig{CooldownSeconds: 5, MinContourArea: 500},
			Objects:   ObjectConfig{ConfidenceThreshold: 0.5, IntervalSeconds: 0.5},
			Recording: RecordingConfig{Folder: "gravacoes"},
			Events:    EventConfig{File: "events.jsonl"},
		}
	}

	testCases := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:      "有効な設定",
			mutate:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なポート番号",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			expectErr: true,
		},
		{
			name:      "負のクールダウン",
			mutate:    func(c *Config) { c.Motion.CooldownSeconds = -1 },
			expectErr: true,
		},
		{
			name:      "負の最小輪郭面積",
			mutate:    func(c *Config) { c.Motion.MinContourArea = -10 },
			expectErr: true,
		},
		{
			name:      "範囲外の信頼度しきい値",
			mutate:    func(c *Config) { c.Objects.ConfidenceThreshold = 1.5 },
			expectErr: true,
		},
		{
			name:      "録画フォルダが空",
			mutate:    func(c *Config) { c.Recording.Folder = "" },
			expectErr: true,
		},
		{
			name: "カメラIDの重複",
			mutate: func(c *Config) {
				c.Cameras = append(c.Cameras, CameraConfig{ID: "webcam", Source: "1"})
			},
			expectErr: true,
		},
		{
			name: "カメラIDが空",
			mutate: func(c *Config) {
				c.Cameras = []CameraConfig{{ID: "", Source: "0"}}
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、エラーが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラー: %v", err)
			}
		})
	}
}

// TestConfigHelpers は秒数からDurationへの変換ヘルパーをテストする
func TestConfigHelpers(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8080},
		Motion:  MotionConfig{CooldownSeconds: 2.5},
		Objects: ObjectConfig{IntervalSeconds: 0.5},
	}

	if got := cfg.MotionCooldown(); got != 2500*time.Millisecond {
		t.Errorf("クールダウンの変換が不正: %v", got)
	}
	if got := cfg.DetectionInterval(); got != 500*time.Millisecond {
		t.Errorf("検知間隔の変換が不正: %v", got)
	}
	if got := cfg.ServerAddress(); got != "127.0.0.1:8080" {
		t.Errorf("サーバーアドレスが不正: %s", got)
	}
}
