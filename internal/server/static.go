package server

import (
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// fallbackContentType は種類を判定できなかった場合のContent-Type
const fallbackContentType = "text/plain"

// resolveStatic はURLパスをサイトルート配下のファイルパスに変換する
// ルートの外を指す場合（シンボリックリンク経由を含む）は false を返す
func resolveStatic(root, urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		return "", false
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}

	// Join がパスを正規化する
	full := filepath.Join(absRoot, filepath.FromSlash(rel))
	if !within(absRoot, full) {
		return "", false
	}

	// シンボリックリンクを解決した上でもう一度確認する
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", false
	}
	realFull, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", false
	}
	if !within(realRoot, realFull) {
		return "", false
	}

	return realFull, true
}

// within は path が root 配下にあるかを返す
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// contentType はファイルのContent-Typeを決める
//
// 種類はリクエストされたパス name の拡張子から推定する。
// 推定できない場合は text/plain とし、中身がテキストなら文字コードだけを付け加える。
// file は実際に読むファイルのパス
func contentType(name, file string) string {
	if ext := path.Ext(name); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return plainContentType(file)
}

// plainContentType は text/plain に文字コードを付けて返す
// 中身がテキストとして判定できない場合は text/plain のまま返す
func plainContentType(file string) string {
	mt, err := mimetype.DetectFile(file)
	if err != nil || !mt.Is(fallbackContentType) {
		return fallbackContentType
	}
	return mt.String()
}
