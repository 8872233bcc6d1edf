package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mihari/internal/camera"
	"mihari/internal/event"
)

// ErrorResponse はエラー応答の共通形式
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ToggleResponse は検知切り替え応答の形式
type ToggleResponse struct {
	CamID   string `json:"cam_id"`
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
}

// RecordingInfo は録画ファイル1件の情報
type RecordingInfo struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// lookupWorker はIDでワーカーを引き、見つからなければ404を書き込む
func (s *Server) lookupWorker(c *gin.Context) (*camera.Worker, bool) {
	id := c.Param("id")
	worker, found := s.registry.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "camera_not_found",
			Message:   "指定されたカメラが見つかりません",
			Timestamp: time.Now(),
		})
		return nil, false
	}
	return worker, true
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "running",
		"server": gin.H{
			"host": s.config.Server.Host,
			"port": s.config.Server.Port,
		},
		"cameras":   len(s.registry.IDs()),
		"timestamp": time.Now(),
	})
}

// handleCameras はカメラ一覧取得エンドポイントの実装
func (s *Server) handleCameras(c *gin.Context) {
	workers := s.registry.Workers()
	statuses := make([]camera.WorkerStatus, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.Status())
	}
	c.JSON(http.StatusOK, gin.H{"cameras": statuses})
}

// handleCameraStatus は個別カメラの状態取得エンドポイントの実装
func (s *Server) handleCameraStatus(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, worker.Status())
}

// handleStartRecording は手動録画開始エンドポイントの実装。冪等
func (s *Server) handleStartRecording(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}

	if err := worker.StartRecording(); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "recording_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	s.events.Log(event.Event{
		Type: event.TypeUserAction, Severity: event.SeverityInfo,
		CameraID: worker.ID(), Message: "手動録画を開始",
	})
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("録画中 (%s)", worker.ID())})
}

// handleStopRecording は手動録画停止エンドポイントの実装。冪等
func (s *Server) handleStopRecording(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}

	worker.StopRecording()
	s.events.Log(event.Event{
		Type: event.TypeUserAction, Severity: event.SeverityInfo,
		CameraID: worker.ID(), Message: "手動録画を停止",
	})
	c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("待機中 (%s)", worker.ID())})
}

// handleToggleMotion は動き検知切り替えエンドポイントの実装
func (s *Server) handleToggleMotion(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}

	enabled := worker.ToggleMotionDetection()
	status := "動き検知を無効化"
	if enabled {
		status = "動き検知を有効化"
	}
	c.JSON(http.StatusOK, ToggleResponse{
		CamID:   worker.ID(),
		Enabled: enabled,
		Status:  status,
	})
}

// handleToggleObjects は物体検知切り替えエンドポイントの実装
func (s *Server) handleToggleObjects(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}

	enabled, err := worker.ToggleObjectDetection()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "object_detection_unavailable",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	status := "物体検知を無効化"
	if enabled {
		status = "物体検知を有効化"
	}
	c.JSON(http.StatusOK, ToggleResponse{
		CamID:   worker.ID(),
		Enabled: enabled,
		Status:  status,
	})
}

// handleDetectionStats は物体検知統計取得エンドポイントの実装
func (s *Server) handleDetectionStats(c *gin.Context) {
	worker, ok := s.lookupWorker(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, worker.DetectionStats())
}

// handleRecordings は録画ファイル一覧取得エンドポイントの実装
func (s *Server) handleRecordings(c *gin.Context) {
	entries, err := os.ReadDir(s.config.Recording.Folder)
	if err != nil {
		if os.IsNotExist(err) {
			// まだ1本も録画していない
			c.JSON(http.StatusOK, gin.H{"recordings": []RecordingInfo{}})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "recordings_unavailable",
			Message:   "録画フォルダを読み取れませんでした",
			Timestamp: time.Now(),
		})
		return
	}

	recordings := make([]RecordingInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".webm") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		recordings = append(recordings, RecordingInfo{
			Filename:   filepath.Base(entry.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	// 新しいものを先頭に
	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModifiedAt.After(recordings[j].ModifiedAt)
	})

	c.JSON(http.StatusOK, gin.H{"recordings": recordings})
}
