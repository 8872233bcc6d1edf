package camera

import (
	"fmt"
	"image/color"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"mihari/internal/event"
)

const (
	// reconnectDelay はソース切断時に再接続を試みるまでの待ち時間
	reconnectDelay = 5 * time.Second
	// readRetryDelay は一時的な読み取り失敗後の待ち時間
	readRetryDelay = 1 * time.Second

	// DefaultMotionCooldown は動きが途絶えてから自動録画を止めるまでの時間
	DefaultMotionCooldown = 5 * time.Second
	// DefaultDetectionInterval は物体検知の実行間隔
	DefaultDetectionInterval = 500 * time.Millisecond

	// detectionRingSize は保持する検知レコードの上限
	detectionRingSize = 10
	// recentStatsLimit は統計で外部に返す直近レコードの上限
	recentStatsLimit = 5
)

// motionBoxColor は動き領域の枠の色（緑）
var motionBoxColor = color.RGBA{G: 255}

// WorkerConfig はワーカーの調整項目
type WorkerConfig struct {
	MotionCooldown         time.Duration // 動きが途絶えてから自動録画を止めるまでの時間
	MinContourArea         float64       // 動きとみなす輪郭の最小面積
	DetectionInterval      time.Duration // 物体検知の実行間隔
	ObjectDetectionEnabled bool          // 起動時に物体検知を有効にするか
	ConfidenceThreshold    float32       // これ未満の信頼度の検知は捨てる
	ClassesFilter          []string      // 空でなければこのクラスだけを採用する
	AutoRecordClasses      []string      // 検知したら自動録画を始めるクラス
	RecordingFolder        string        // 録画ファイルの保存先
}

// withDefaults は未設定の項目をデフォルト値で埋める
func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.MotionCooldown <= 0 {
		c.MotionCooldown = DefaultMotionCooldown
	}
	if c.MinContourArea <= 0 {
		c.MinContourArea = DefaultMinContourArea
	}
	if c.DetectionInterval <= 0 {
		c.DetectionInterval = DefaultDetectionInterval
	}
	if c.RecordingFolder == "" {
		c.RecordingFolder = "gravacoes"
	}
	return c
}

// Worker は1つの映像ソースの取り込み・判断ループを担う
//
// ソースごとに専用ゴルーチンで動き続け、ソース障害でも自ら終了しない。
// 2つのロックを別々に持つ: frameMuは共有フレームだけを、stateMuは録画・
// 検知まわりの状態だけを守る。優先度逆転を避けるため、どのコードパスも
// 両方を同時に保持してはならない
type Worker struct {
	id   string
	name string

	source FrameSource
	cfg    WorkerConfig
	events event.Sink

	// 物体検知の能力は構築時に一度だけ確定する
	hasObjectDetection bool
	bridge             ObjectDetectorBridge

	// detector は内部にロックを持つ。重い画素計算がstateMuの保持時間を
	// 伸ばさないよう、stateMuの外から呼ぶ
	detector *MotionDetector

	// frameMu は共有フレームバッファだけを守る（保持時間は短く）
	frameMu  sync.Mutex
	output   gocv.Mat
	hasFrame bool

	// stateMu は録画・検知の状態を守る
	stateMu       sync.Mutex
	connected     bool
	recording     bool
	recorder      *Recorder
	motionEnabled bool
	lastMotion    time.Time
	objectEnabled bool
	lastDetection time.Time

	// statsMu は検知統計だけを守る
	statsMu         sync.Mutex
	totalDetections int
	countsByClass   map[string]int
	lastDetectionAt time.Time
	recent          []DetectionRecord

	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
	releaseOnce sync.Once
	started     bool

	// テストで差し替えるための時刻源
	// time.TimeのSubは単調クロック成分を使うため、時刻調整の影響を受けない
	nowFn func() time.Time
	// テストで差し替えるためのエンコーダ生成関数
	newRecorder func(folder, sourceID string, width, height int) (*Recorder, error)
}

// NewWorker は新しいWorkerを作成する
// bridgeがnilの場合、このワーカーは物体検知の能力を持たない
func NewWorker(src Source, source FrameSource, bridge ObjectDetectorBridge, cfg WorkerConfig, events event.Sink) *Worker {
	cfg = cfg.withDefaults()
	if events == nil {
		events = event.Discard{}
	}
	return &Worker{
		id:                 src.ID,
		name:               src.Name,
		source:             source,
		cfg:                cfg,
		events:             events,
		hasObjectDetection: bridge != nil,
		bridge:             bridge,
		objectEnabled:      cfg.ObjectDetectionEnabled && bridge != nil,
		detector:           NewMotionDetector(cfg.MinContourArea),
		countsByClass:      make(map[string]int),
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
		nowFn:              time.Now,
		newRecorder:        NewRecorder,
	}
}

// ID はソース識別子を返す
func (w *Worker) ID() string {
	return w.id
}

// Name は表示名を返す
func (w *Worker) Name() string {
	return w.name
}

// Start はソースを開いて取り込みループを開始する
// 初回の接続に失敗してもループは開始され、ループ内で再接続を続ける
func (w *Worker) Start() {
	log.Printf("カメラを起動します: %s", w.id)
	if err := w.source.Open(); err != nil {
		log.Printf("(%s): カメラを開けませんでした: %v", w.id, err)
	}
	w.setConnected(w.source.IsOpened())

	w.started = true
	go w.run()
}

// run は取り込みループ本体。Releaseされるまで回り続ける
func (w *Worker) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		delay := w.iterate()
		if delay <= 0 {
			continue
		}
		select {
		case <-w.stopCh:
			return
		case <-time.After(delay):
		}
	}
}

// iterate はループ1周分の処理を行い、次の周回までの待ち時間を返す
func (w *Worker) iterate() time.Duration {
	// 切断状態: プレースホルダを公開してから再接続を試みる
	if !w.source.IsOpened() {
		w.setConnected(false)
		w.publishPlaceholder()
		if err := w.source.Open(); err != nil {
			log.Printf("(%s): カメラに接続できません。%v後に再試行します", w.id, reconnectDelay)
			return reconnectDelay
		}
		log.Printf("(%s): カメラに接続しました", w.id)
		w.setConnected(true)
		w.events.Log(event.Event{
			Type: event.TypeCameraConnected, Severity: event.SeverityInfo,
			CameraID: w.id, Message: "カメラに接続しました",
		})
		return 0
	}

	raw := gocv.NewMat()
	defer raw.Close()
	if !w.source.Read(&raw) || raw.Empty() {
		// 一時的な読み取り失敗。接続は破棄せず少し待って読み直す
		log.Printf("(%s): フレームの読み取りに失敗しました", w.id)
		w.publishPlaceholder()
		return readRetryDelay
	}
	w.setConnected(true)

	// annotatedは配信用。検知枠などの描画はこちらにだけ行い、rawは変更しない
	annotated := raw.Clone()
	defer func() { annotated.Close() }()

	w.stateMu.Lock()
	motionOn := w.motionEnabled
	w.stateMu.Unlock()

	if motionOn {
		result := w.detector.Observe(raw)

		if result.Calibrated {
			// 校正フレーム。比較対象ができただけなので公開も録画もしない
			log.Printf("検知 (%s): 静的背景を設定しました", w.id)
			return 0
		}

		for _, region := range result.Regions {
			gocv.Rectangle(&annotated, region, motionBoxColor, 2)
		}

		now := w.nowFn()
		w.stateMu.Lock()
		if result.Detected {
			w.lastMotion = now
			if !w.recording {
				log.Printf("検知 (%s): 動きを検知しました。録画を開始します", w.id)
				w.events.Log(event.Event{
					Type: event.TypeMotionDetected, Severity: event.SeverityInfo,
					CameraID: w.id, Message: "動きを検知 - 自動録画を開始",
				})
				if err := w.startRecordingLocked(raw.Cols(), raw.Rows()); err != nil {
					log.Printf("(%s): 録画を開始できませんでした: %v", w.id, err)
				}
			}
		} else if w.recording && now.Sub(w.lastMotion) > w.cfg.MotionCooldown {
			log.Printf("検知 (%s): %v動きがないため録画を停止します", w.id, w.cfg.MotionCooldown)
			w.stopRecordingLocked()
		}
		w.stateMu.Unlock()
	}

	if w.hasObjectDetection {
		w.runObjectDetection(raw, &annotated)
	}

	// 録画中なら生フレームを書き込む。保存される動画に検知枠は乗せない
	// エンコーダは録画遷移時に開かれている（recording == true ⇔ recorder != nil）
	w.stateMu.Lock()
	if w.recording {
		w.recorder.Write(raw)
	}
	w.stateMu.Unlock()

	w.publish(annotated)
	return 0
}

// runObjectDetection は検知間隔が経過していればブリッジで推論を実行する
// annotatedはブリッジが返した描画済みフレームに置き換わることがある
func (w *Worker) runObjectDetection(raw gocv.Mat, annotated *gocv.Mat) {
	now := w.nowFn()

	w.stateMu.Lock()
	due := w.objectEnabled && now.Sub(w.lastDetection) >= w.cfg.DetectionInterval
	if due {
		w.lastDetection = now
	}
	w.stateMu.Unlock()
	if !due {
		return
	}

	result, objects, err := w.bridge.Detect(*annotated)
	if err != nil {
		// 推論の失敗はこの周期だけスキップしてループを続ける
		log.Printf("(%s): 物体検知に失敗しました: %v", w.id, err)
		w.events.Log(event.Event{
			Type: event.TypeSystemError, Severity: event.SeverityError,
			CameraID: w.id, Message: fmt.Sprintf("物体検知に失敗: %v", err),
		})
		return
	}
	annotated.Close()
	*annotated = result

	objects = w.filterObjects(objects)
	if len(objects) == 0 {
		return
	}

	w.recordDetections(now, objects)

	classes := make([]string, 0, len(objects))
	for _, obj := range objects {
		classes = append(classes, obj.Class)
	}
	w.events.Log(event.Event{
		Type: event.TypeObjectDetected, Severity: event.SeverityInfo,
		CameraID: w.id,
		Message:  fmt.Sprintf("%d件の物体を検知", len(objects)),
		Details:  map[string]any{"objects": classes, "count": len(objects)},
	})

	if !w.shouldAutoRecord(classes) {
		return
	}
	w.stateMu.Lock()
	if !w.recording {
		log.Printf("物体検知 (%s): %v を検知しました。録画を開始します", w.id, classes)
		if err := w.startRecordingLocked(raw.Cols(), raw.Rows()); err != nil {
			log.Printf("(%s): 録画を開始できませんでした: %v", w.id, err)
		} else {
			// クールダウンで即停止しないように、検知時刻を動き時刻として扱う
			w.lastMotion = now
		}
	}
	w.stateMu.Unlock()
}

// filterObjects は信頼度しきい値とクラスフィルタで検知結果を絞り込む
func (w *Worker) filterObjects(objects []DetectedObject) []DetectedObject {
	if w.cfg.ConfidenceThreshold <= 0 && len(w.cfg.ClassesFilter) == 0 {
		return objects
	}

	kept := make([]DetectedObject, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence < w.cfg.ConfidenceThreshold {
			continue
		}
		if len(w.cfg.ClassesFilter) > 0 && !containsClass(w.cfg.ClassesFilter, obj.Class) {
			continue
		}
		kept = append(kept, obj)
	}
	return kept
}

func containsClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// shouldAutoRecord は検知クラスに自動録画対象が含まれるかを返す
func (w *Worker) shouldAutoRecord(classes []string) bool {
	if len(w.cfg.AutoRecordClasses) == 0 {
		return false
	}
	for _, class := range classes {
		if containsClass(w.cfg.AutoRecordClasses, class) {
			return true
		}
	}
	return false
}

// recordDetections は検知レコードを追加し、集計カウンタを更新する
func (w *Worker) recordDetections(now time.Time, objects []DetectedObject) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.recent = append(w.recent, DetectionRecord{
		Timestamp: now,
		Objects:   objects,
		Count:     len(objects),
	})
	if len(w.recent) > detectionRingSize {
		w.recent = w.recent[len(w.recent)-detectionRingSize:]
	}

	w.totalDetections += len(objects)
	w.lastDetectionAt = now
	for _, obj := range objects {
		w.countsByClass[obj.Class]++
	}
}

// startRecordingLocked は録画状態に遷移してエンコーダを開く
// stateMuを保持して呼ぶこと。エンコーダを開けなかった場合は遷移を中止して
// Idleに戻り、エラーを返す
func (w *Worker) startRecordingLocked(width, height int) error {
	if w.recording {
		return nil
	}
	if err := w.startEncoderLocked(width, height); err != nil {
		return err
	}
	w.recording = true
	return nil
}

// startEncoderLocked は新しい録画セッションのエンコーダを開く
// stateMuを保持して呼ぶこと
func (w *Worker) startEncoderLocked(width, height int) error {
	recorder, err := w.newRecorder(w.cfg.RecordingFolder, w.id, width, height)
	if err != nil {
		w.events.Log(event.Event{
			Type: event.TypeSystemError, Severity: event.SeverityError,
			CameraID: w.id, Message: fmt.Sprintf("録画を開始できませんでした: %v", err),
		})
		return err
	}
	w.recorder = recorder
	log.Printf("(%s): 録画ファイル: %s", w.id, recorder.Path())
	w.events.Log(event.Event{
		Type: event.TypeRecordingStarted, Severity: event.SeverityInfo,
		CameraID: w.id, Message: "録画を開始",
		Details: map[string]any{
			"filename":   recorder.Path(),
			"resolution": fmt.Sprintf("%dx%d", width, height),
			"fps":        recordingFPS,
		},
	})
	return nil
}

// stopRecordingLocked は録画を止めてエンコーダをフラッシュする
// stateMuを保持して呼ぶこと
func (w *Worker) stopRecordingLocked() {
	if !w.recording {
		return
	}
	w.recording = false
	if w.recorder != nil {
		w.recorder.Close()
		log.Printf("(%s): 録画ファイルを保存しました: %s", w.id, w.recorder.Path())
		w.recorder = nil
		w.events.Log(event.Event{
			Type: event.TypeRecordingStopped, Severity: event.SeverityInfo,
			CameraID: w.id, Message: "録画を停止",
		})
	}
}

// StartRecording は手動録画を開始する。すでに録画中なら何もしない
func (w *Worker) StartRecording() error {
	// フレームロックと状態ロックを同時に持たないよう、寸法は先に取る
	frame, ok := w.LatestFrame()
	var width, height int
	if ok {
		width, height = frame.Cols(), frame.Rows()
		frame.Close()
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.recording {
		return nil
	}
	if !ok {
		return fmt.Errorf("カメラ %s のフレームがまだ取得できていません", w.id)
	}
	log.Printf("(%s): 手動録画を開始します", w.id)
	return w.startRecordingLocked(width, height)
}

// StopRecording は録画を停止する。録画していなければ何もしない
func (w *Worker) StopRecording() {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.stopRecordingLocked()
}

// ToggleMotionDetection は動き検知の有効/無効を切り替え、切り替え後の状態を返す
// 有効化のたびに背景を取り直す。無効化時に録画中であれば、呼び出しが戻る前に
// 録画を同期的に停止する
func (w *Worker) ToggleMotionDetection() bool {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	w.motionEnabled = !w.motionEnabled
	if w.motionEnabled {
		w.detector.Rearm()
		log.Printf("(%s): 動き検知を有効にしました", w.id)
	} else {
		log.Printf("(%s): 動き検知を無効にしました", w.id)
		if w.recording {
			w.stopRecordingLocked()
		}
	}
	return w.motionEnabled
}

// ToggleObjectDetection は物体検知の有効/無効を切り替え、切り替え後の状態を返す
// ブリッジなしで構築されたワーカーではエラーを返す
func (w *Worker) ToggleObjectDetection() (bool, error) {
	if !w.hasObjectDetection {
		return false, fmt.Errorf("カメラ %s は物体検知に対応していません", w.id)
	}

	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.objectEnabled = !w.objectEnabled
	if w.objectEnabled {
		log.Printf("(%s): 物体検知を有効にしました", w.id)
	} else {
		log.Printf("(%s): 物体検知を無効にしました", w.id)
	}
	return w.objectEnabled, nil
}

// Status は現在状態のスナップショットを返す
func (w *Worker) Status() WorkerStatus {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	state := StatusDisconnected
	if w.connected {
		state = StatusIdle
		if w.recording {
			state = StatusRecording
		}
	}
	return WorkerStatus{
		ID:                     w.id,
		Name:                   w.name,
		State:                  state,
		Recording:              w.recording,
		MotionEnabled:          w.motionEnabled,
		ObjectDetectionEnabled: w.objectEnabled,
		HasObjectDetection:     w.hasObjectDetection,
	}
}

// DetectionStats は物体検知の統計を返す。直近レコードは最大5件
func (w *Worker) DetectionStats() DetectionStats {
	w.stateMu.Lock()
	enabled := w.objectEnabled
	w.stateMu.Unlock()

	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	counts := make(map[string]int, len(w.countsByClass))
	for class, count := range w.countsByClass {
		counts[class] = count
	}

	recent := w.recent
	if len(recent) > recentStatsLimit {
		recent = recent[len(recent)-recentStatsLimit:]
	}
	records := make([]DetectionRecord, len(recent))
	copy(records, recent)

	return DetectionStats{
		TotalDetections: w.totalDetections,
		CountsByClass:   counts,
		LastDetectionAt: w.lastDetectionAt,
		Recent:          records,
		Enabled:         enabled,
	}
}

// LatestFrame は最後に公開されたフレームの独立したコピーを返す
// まだ何も公開されていなければok=falseを返す（その場合Matは無効であり、
// Closeしてはならない）。返されたコピーを変更しても以後の公開フレームには
// 影響しない
func (w *Worker) LatestFrame() (gocv.Mat, bool) {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	if !w.hasFrame {
		return gocv.Mat{}, false
	}
	return w.output.Clone(), true
}

// publish はフレームのコピーを共有バッファに上書き公開する
func (w *Worker) publish(frame gocv.Mat) {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	if w.hasFrame {
		w.output.Close()
	}
	w.output = frame.Clone()
	w.hasFrame = true
}

// publishPlaceholder は「カメラ利用不可」フレームを公開する
func (w *Worker) publishPlaceholder() {
	frame := NoSignalFrame(w.id, placeholderWidth, placeholderHeight)
	w.publish(frame)
	frame.Close()
}

// setConnected は接続状態フラグを更新する
// 接続中から切断への遷移時だけ切断イベントを記録する
func (w *Worker) setConnected(connected bool) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.connected && !connected {
		w.events.Log(event.Event{
			Type: event.TypeCameraDisconnected, Severity: event.SeverityWarning,
			CameraID: w.id, Message: "カメラとの接続が切れました",
		})
	}
	w.connected = connected
}

// Release はループを止め、録画をフラッシュし、ソースを閉じる
// シャットダウン時にRegistry経由で呼ばれる。複数回呼んでも安全
func (w *Worker) Release() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if w.started {
		<-w.doneCh
	}

	w.releaseOnce.Do(func() {
		w.stateMu.Lock()
		w.stopRecordingLocked()
		w.detector.Close()
		w.stateMu.Unlock()

		w.source.Close()

		w.frameMu.Lock()
		if w.hasFrame {
			w.output.Close()
			w.hasFrame = false
		}
		w.frameMu.Unlock()

		log.Printf("(%s): ワーカーを解放しました", w.id)
	})
}
