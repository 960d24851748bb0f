package server

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"dengon/internal/render"
	"dengon/internal/store"

	"github.com/gin-gonic/gin"
)

// htmlContentType はHTMLページのContent-Type
const htmlContentType = "text/html; charset=utf-8"

// maxFormBytes はフォーム本文の上限
const maxFormBytes = 1 << 20

// BoardHandler は伝言板の各エンドポイントを実装する
type BoardHandler struct {
	store    store.Store
	renderer render.Renderer
	clock    *store.Clock
	pages    *pageSet
	root     string
}

// Home はトップページを返す
func (h *BoardHandler) Home(c *gin.Context) {
	h.servePage(c, pageHome, http.StatusOK)
}

// Compose は投稿フォームのページを返す
func (h *BoardHandler) Compose(c *gin.Context) {
	h.servePage(c, pageCompose, http.StatusOK)
}

// Read は保存されているメッセージの一覧ページを返す
func (h *BoardHandler) Read(c *gin.Context) {
	collection, err := h.store.Load()
	if err != nil {
		h.internalError(c, "メッセージの読み込みに失敗", err)
		return
	}

	// 途中まで書かれたページを返さないよう一旦バッファに書く
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, collection); err != nil {
		h.internalError(c, "一覧ページの生成に失敗", err)
		return
	}

	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}

// Submit はフォーム投稿を保存してトップページへリダイレクトする
// パスに関係なくすべてのPOSTがここに来る
func (h *BoardHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
			return
		}
		c.String(http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	sub, err := parseSubmission(string(body))
	if err != nil {
		// 壊れたフィールドは捨てて、読めたフィールドで保存を続ける
		log.Printf("[%s] フォームの一部を破棄しました: %v", c.GetString(requestIDKey), err)
	}

	collection, err := h.store.Load()
	if err != nil {
		h.internalError(c, "メッセージの読み込みに失敗", err)
		return
	}

	key := h.clock.Next(collection)
	collection[key] = store.Record{
		Username: sub.Username,
		Message:  sub.Message,
	}

	if err := h.store.Save(collection); err != nil {
		h.internalError(c, "メッセージの保存に失敗", err)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

// Static はサイトルート配下のファイルを返す
// 見つからない場合はエラーページを404で返す
func (h *BoardHandler) Static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Header("Allow", "GET, HEAD, POST")
		c.String(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}

	path, ok := resolveStatic(h.root, c.Request.URL.Path)
	if !ok {
		h.notFound(c)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		h.notFound(c)
		return
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			log.Printf("ファイルのクローズに失敗: %v", err)
		}
	}(file)

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		h.notFound(c)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType(c.Request.URL.Path, path), file, nil)
}

// ヘルパー関数

// servePage は固定ページを返す
func (h *BoardHandler) servePage(c *gin.Context, name string, status int) {
	data, err := h.pages.read(name)
	if err != nil {
		h.internalError(c, "ページ "+name+" の読み込みに失敗", err)
		return
	}
	c.Data(status, htmlContentType, data)
}

// notFound はエラーページを404で返す
func (h *BoardHandler) notFound(c *gin.Context) {
	h.servePage(c, pageError, http.StatusNotFound)
}

// internalError はエラーをログに出して500を返す
func (h *BoardHandler) internalError(c *gin.Context, msg string, err error) {
	log.Printf("[%s] %s: %v", c.GetString(requestIDKey), msg, err)
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
