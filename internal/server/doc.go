// Package server は、伝言板のHTTPサーバーとルーティングを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// メッセージ投稿の受け付け、一覧ページと静的ファイルの配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - 固定ページ（トップ・投稿フォーム・エラー）の配信
//   - 一覧ページの生成
//   - フォーム投稿の保存とリダイレクト
//   - サイトルート配下の静的ファイルの配信
//
// 仕様:
//   - ルーティングにはginを使用
//   - リクエストは1件ずつ直列に処理する
//   - SIGINT/SIGTERMでシャットダウンする
//   - サイトルートの外を指すパスは404として扱う
package server
