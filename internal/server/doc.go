// Package server HTTPサーバーとストリーミング配信を管理する
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEG/WebSocketによるライブ映像の配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - カメラ操作API（録画開始/停止・検知の切り替え・状態取得）
//   - 共有フレームバッファからのMJPEGストリーミング配信
//   - gorilla/websocketによるフレーム配信
//
// 仕様:
//   - ルーティングとJSON応答はgin-gonic/ginを使用
//   - 配信側はワーカーのフレームコピーだけを読む。ワーカーの内部状態には
//     公開された操作経由でしか触れない
//   - 複数クライアントの同時接続をサポート
package server
