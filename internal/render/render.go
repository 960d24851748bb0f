// Package render はメッセージ一覧のHTMLを生成します。
package render

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dengon/internal/store"
)

// DefaultTemplate はデフォルトのテンプレート名
const DefaultTemplate = "data.html"

//go:embed templates/data.html
var embedFS embed.FS

// Renderer はCollectionからHTMLを生成する
type Renderer interface {
	Render(w io.Writer, c store.Collection) error
}

// Page はテンプレートに渡すデータ
type Page struct {
	Data  store.Collection
	Count int
}

// TemplateRenderer はhtml/templateを使うRenderer実装
//
// テンプレートはサイトルートからの相対パスで呼び出しのたびに読み込む。
// ファイルが無い場合は埋め込みのデフォルトテンプレートを使う。
type TemplateRenderer struct {
	root string
	name string
}

// NewTemplateRenderer は新しいTemplateRendererを作成する
func NewTemplateRenderer(root, name string) *TemplateRenderer {
	if name == "" {
		name = DefaultTemplate
	}
	return &TemplateRenderer{root: root, name: name}
}

// Render はCollectionをテンプレートに適用して w に書き込む
func (r *TemplateRenderer) Render(w io.Writer, c store.Collection) error {
	tmpl, err := r.load()
	if err != nil {
		return err
	}

	if c == nil {
		c = store.Collection{}
	}
	page := Page{Data: c, Count: len(c)}

	if err := tmpl.Execute(w, page); err != nil {
		return fmt.Errorf("テンプレート %s の実行に失敗: %w", r.name, err)
	}
	return nil
}

// load はテンプレートを読み込んでパースする
func (r *TemplateRenderer) load() (*template.Template, error) {
	path := filepath.Join(r.root, r.name)
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		src, err = embedFS.ReadFile("templates/" + DefaultTemplate)
	}
	if err != nil {
		return nil, fmt.Errorf("テンプレート %s の読み込みに失敗: %w", path, err)
	}

	tmpl, err := template.New(r.name).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("テンプレート %s のパースに失敗: %w", path, err)
	}
	return tmpl, nil
}
