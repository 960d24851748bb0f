package store

import (
	"errors"
	"sort"
)

// ErrStorageCorrupt はドキュメントが存在するがJSONとして解釈できない場合のエラー
var ErrStorageCorrupt = errors.New("ストレージのドキュメントが破損しています")

// ErrStorageIO はファイルシステム操作に失敗した場合のエラー
var ErrStorageIO = errors.New("ストレージの入出力に失敗しました")

// Record は投稿された1件のメッセージ
// フォームに存在しなかったフィールドはnilのままJSONのnullとして保存される
type Record struct {
	Username *string `json:"username"`
	Message  *string `json:"message"`
}

// DisplayName はユーザー名を返す（未設定なら空文字）
func (r Record) DisplayName() string {
	if r.Username == nil {
		return ""
	}
	return *r.Username
}

// Text はメッセージ本文を返す（未設定なら空文字）
func (r Record) Text() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

// Collection はタイムスタンプをキーとした全メッセージ
type Collection map[string]Record

// Keys はキーを昇順（= 時系列順）で返す
func (c Collection) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store はCollectionの永続化を抽象化する
// ファイル以外（ロック付きファイル、KVS、DBなど）の実装に差し替えられるよう
// ルーター側はこのインターフェースにのみ依存する
type Store interface {
	// Load は永続化されたCollectionを丸ごと読み込む
	Load() (Collection, error)
	// Save はCollectionを丸ごと書き戻す
	Save(c Collection) error
}
