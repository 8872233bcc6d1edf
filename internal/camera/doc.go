// Package camera 映像ソースごとの取り込み・判断ループを担う
//
// # 責務
// - 映像ソース（USBデバイス / ネットワークストリーム）からの連続フレーム取得
// - 静的背景差分による動き検知
// - 自動／手動の録画状態機械の駆動
// - 外部推論エンジン（物体検知ブリッジ）との連携
// - 最新フレームの共有バッファへの公開
// - ワーカーレジストリによるプロセス全体のライフサイクル管理
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 映像ソースごとに独立したワーカーを常駐させたい
// - 動き・物体の検知結果で録画を自動制御したい
// - ライブ配信用に最新フレームのコピーを取得したい
//
// # 仕様
// - Worker: ソースごとに1ゴルーチン。ソース障害でも自ら終了しない
// - フレームロックと状態ロックは別々に持ち、同時には保持しない
// - MotionDetector: 21x21ガウシアンブラー + 背景差分 + 輪郭抽出
//   背景は静的で、再有効化（Rearm）されるまで更新しない
// - Recorder: VP80/webm 固定20fps。書き込み失敗は握りつぶす
// - Registry: ワーカー自身のロックとは独立したロックで管理する
//
// # 前提要件
//   - OpenCV 4.x: gocv経由でのキャプチャ・画像処理・エンコードに使用
//     Ubuntu/Debian: sudo apt install libopencv-dev
package camera
