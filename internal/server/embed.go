package server

import (
	"embed"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

//go:embed web
var embedFS embed.FS

// ページリソース名
const (
	pageHome    = "index.html"
	pageCompose = "message.html"
	pageError   = "error.html"
)

// getDefaultPagesFS は埋め込みのデフォルトページを返す
func getDefaultPagesFS() fs.FS {
	// web のサブディレクトリを取得
	pagesFS, err := fs.Sub(embedFS, "web")
	if err != nil {
		log.Fatalf("埋め込みページファイルシステムの作成に失敗: %v", err)
	}
	return pagesFS
}

// pageSet は固定ページの読み込み元
// サイトルートにファイルがあればそれを、無ければ埋め込みのデフォルトを返す
type pageSet struct {
	root     string
	fallback fs.FS
}

func newPageSet(root string) *pageSet {
	return &pageSet{root: root, fallback: getDefaultPagesFS()}
}

// read はページの内容を返す
func (p *pageSet) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(p.root, name))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return fs.ReadFile(p.fallback, name)
}
