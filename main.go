package main

import (
	"context"
	"log"

	"mihari/internal/camera"
	"mihari/internal/config"
	"mihari/internal/event"
	"mihari/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// イベントロガーを作成。失敗してもサーバー自体は動かす
	var events event.Sink
	logger, err := event.NewLogger(cfg.Events.File)
	if err != nil {
		log.Printf("イベントログを開けません: %v", err)
		events = event.Discard{}
	} else {
		events = logger
		defer logger.Close()
	}

	// 有効なカメラごとにワーカーを起動してレジストリに登録する
	registry := camera.NewRegistry()
	defer registry.ReleaseAll()

	workerCfg := camera.WorkerConfig{
		MotionCooldown:         cfg.MotionCooldown(),
		MinContourArea:         cfg.Motion.MinContourArea,
		DetectionInterval:      cfg.DetectionInterval(),
		ObjectDetectionEnabled: cfg.Objects.Enabled,
		ConfidenceThreshold:    float32(cfg.Objects.ConfidenceThreshold),
		ClassesFilter:          cfg.Objects.ClassesFilter,
		AutoRecordClasses:      cfg.Objects.AutoRecordClasses,
		RecordingFolder:        cfg.Recording.Folder,
	}

	for _, cam := range cfg.Cameras {
		if !cam.Enabled {
			continue
		}

		src := camera.Source{ID: cam.ID, Name: cam.Name, Origin: cam.Source}
		worker := camera.NewWorker(src, camera.NewFrameSource(cam.Source), nil, workerCfg, events)
		if err := registry.Register(worker); err != nil {
			log.Fatalf("カメラの登録に失敗しました (%s): %v", cam.ID, err)
		}
		worker.Start()
		log.Printf("カメラワーカーを起動しました: %s (%s)", cam.ID, cam.Source)
	}

	// サーバーを作成して起動
	srv := server.New(cfg, registry, events)

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
