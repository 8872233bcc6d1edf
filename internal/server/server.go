package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"mihari/internal/camera"
	"mihari/internal/config"
	"mihari/internal/event"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	registry   *camera.Registry
	events     event.Sink
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, registry *camera.Registry, events event.Sink) *Server {
	if events == nil {
		events = event.Discard{}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		registry: registry,
		events:   events,
		engine:   engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/cameras", s.handleCameras)
		api.GET("/cameras/:id/status", s.handleCameraStatus)
		api.GET("/cameras/:id/stream", s.handleCameraStream)
		api.GET("/cameras/:id/ws", s.handleCameraWebSocket)
		api.POST("/cameras/:id/recording/start", s.handleStartRecording)
		api.POST("/cameras/:id/recording/stop", s.handleStopRecording)
		api.POST("/cameras/:id/motion/toggle", s.handleToggleMotion)
		api.POST("/cameras/:id/objects/toggle", s.handleToggleObjects)
		api.GET("/cameras/:id/detections", s.handleDetectionStats)
		api.GET("/recordings", s.handleRecordings)
	}
}

// Start はサーバーを起動し、シグナルかコンテキストの終了まで待つ
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
