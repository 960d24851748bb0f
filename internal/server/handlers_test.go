package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dengon/internal/store"
)

// testBoard はハンドラーのテスト用の環境
type testBoard struct {
	handler http.Handler
	root    string
	store   *store.FileStore
}

func newTestBoard(t *testing.T, opts ...Option) *testBoard {
	t.Helper()

	cfg := newTestConfig(t)
	fileStore := store.NewFileStore(cfg.Storage.Path)
	srv := New(cfg, append([]Option{WithStore(fileStore)}, opts...)...)

	return &testBoard{
		handler: srv.Handler(),
		root:    cfg.Site.Root,
		store:   fileStore,
	}
}

func (b *testBoard) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	return rec
}

func (b *testBoard) writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(b.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}
	return path
}

func (b *testBoard) load(t *testing.T) store.Collection {
	t.Helper()

	c, err := b.store.Load()
	if err != nil {
		t.Fatalf("読み込みに失敗しました: %v", err)
	}
	return c
}

// TestFixedPages は固定ページが保存内容に関係なく200で返ることをテストする
func TestFixedPages(t *testing.T) {
	b := newTestBoard(t)
	// 保存ファイルが壊れていても固定ページには影響しない
	b.writeFile(t, "storage/data.json", []byte("{broken"))

	testCases := []struct {
		name   string
		method string
		path   string
		marker string
	}{
		{"トップページ", http.MethodGet, "/", "<title>伝言板</title>"},
		{"投稿フォーム", http.MethodGet, "/message", `name="username"`},
		{"トップページ(HEAD)", http.MethodHead, "/", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := b.do(tc.method, tc.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusOK)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("予期しないContent-Type: %s", ct)
			}
			if !strings.Contains(rec.Body.String(), tc.marker) {
				t.Errorf("本文に %q が含まれていません", tc.marker)
			}
		})
	}
}

// TestPagesFromRoot はサイトルートのページが埋め込みより優先されることをテストする
func TestPagesFromRoot(t *testing.T) {
	b := newTestBoard(t)
	b.writeFile(t, "index.html", []byte("<p>custom home</p>"))

	rec := b.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "<p>custom home</p>" {
		t.Errorf("サイトルートのページが返されていません: %d %q", rec.Code, rec.Body.String())
	}
}

// TestReadEmpty は保存ファイルが無い場合に空の一覧が返ることをテストする
func TestReadEmpty(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(http.MethodGet, "/read", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.Contains(rec.Body.String(), `class="message"`) {
		t.Errorf("レコードが出力されるべきではありません:\n%s", rec.Body.String())
	}
}

// TestSubmitAndRead は投稿が保存され一覧に表示されることをテストする
func TestSubmitAndRead(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(http.MethodPost, "/", "username=alice&message=hello")
	if rec.Code != http.StatusFound {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("予期しないリダイレクト先: %q", loc)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("本文は空であるべきです: %q", rec.Body.String())
	}

	c := b.load(t)
	if len(c) != 1 {
		t.Fatalf("1件のレコードが期待されます: %d 件", len(c))
	}
	for _, r := range c {
		if r.DisplayName() != "alice" || r.Text() != "hello" {
			t.Errorf("予期しないレコード: %+v", r)
		}
	}

	rec = b.do(http.MethodGet, "/read", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alice") || !strings.Contains(body, "hello") {
		t.Errorf("一覧に投稿が含まれていません:\n%s", body)
	}
}

// TestSubmitFields はフォームの解析結果が保存されることをテストする
func TestSubmitFields(t *testing.T) {
	testCases := []struct {
		name         string
		path         string
		body         string
		wantUsername *string
		wantMessage  *string
	}{
		{"パーセントエンコード", "/", "username=%E5%A4%AA%E9%83%8E&message=hello+world%21", strPtr("太郎"), strPtr("hello world!")},
		{"区切り文字を含む値", "/", "username=a%26b&message=x%3Dy", strPtr("a&b"), strPtr("x=y")},
		{"ユーザー名なし", "/", "message=only", nil, strPtr("only")},
		{"空の本文", "/", "", nil, nil},
		{"空の値", "/", "username=&message=", strPtr(""), strPtr("")},
		{"任意のパス", "/some/where", "username=u&message=m", strPtr("u"), strPtr("m")},
		{"区切りの無いフィールド", "/", "username=alice&garbage&message=hi", strPtr("alice"), strPtr("hi")},
		{"区切りの無いユーザー名", "/", "username&message=hi", nil, strPtr("hi")},
		{"壊れたエンコード", "/", "username=%zz&message=hi", nil, strPtr("hi")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBoard(t)

			rec := b.do(http.MethodPost, tc.path, tc.body)
			if rec.Code != http.StatusFound {
				t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusFound)
			}

			c := b.load(t)
			if len(c) != 1 {
				t.Fatalf("1件のレコードが期待されます: %d 件", len(c))
			}
			for _, r := range c {
				if !equalPtr(r.Username, tc.wantUsername) {
					t.Errorf("ユーザー名が一致しません: got %v, want %v", deref(r.Username), deref(tc.wantUsername))
				}
				if !equalPtr(r.Message, tc.wantMessage) {
					t.Errorf("メッセージが一致しません: got %v, want %v", deref(r.Message), deref(tc.wantMessage))
				}
			}
		})
	}
}

// TestSubmitTwice は2回の投稿で異なるキーが作られることをテストする
func TestSubmitTwice(t *testing.T) {
	// 時刻が進まない場合でもキーは重複しない
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	b := newTestBoard(t, WithClock(store.NewClockFunc(func() time.Time { return fixed })))

	before := b.load(t)
	b.do(http.MethodPost, "/", "username=a&message=first")
	b.do(http.MethodPost, "/", "username=b&message=second")

	c := b.load(t)
	if len(c) != len(before)+2 {
		t.Fatalf("2件のレコードが期待されます: %d 件", len(c))
	}
	keys := c.Keys()
	if c[keys[0]].Text() != "first" || c[keys[1]].Text() != "second" {
		t.Errorf("投稿順に並んでいません: %+v", c)
	}
}

// TestSubmitKeepsExisting は既存のレコードが保持されることをテストする
func TestSubmitKeepsExisting(t *testing.T) {
	b := newTestBoard(t)

	existing := store.Collection{
		"2000-01-01 00:00:00.000000": {Username: strPtr("old"), Message: strPtr("old message")},
	}
	if err := b.store.Save(existing); err != nil {
		t.Fatalf("保存に失敗しました: %v", err)
	}

	b.do(http.MethodPost, "/", "username=new&message=new+message")

	c := b.load(t)
	if len(c) != 2 {
		t.Fatalf("2件のレコードが期待されます: %d 件", len(c))
	}
	if c["2000-01-01 00:00:00.000000"].Text() != "old message" {
		t.Errorf("既存のレコードが変更されています: %+v", c)
	}
}

// TestSubmitTooLarge は大きすぎる本文が拒否されることをテストする
func TestSubmitTooLarge(t *testing.T) {
	b := newTestBoard(t)

	body := "message=" + strings.Repeat("a", maxFormBytes)
	rec := b.do(http.MethodPost, "/", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if len(b.load(t)) != 0 {
		t.Error("レコードが保存されるべきではありません")
	}
}

// TestCorruptStorage は保存ファイルが壊れている場合に500が返ることをテストする
func TestCorruptStorage(t *testing.T) {
	b := newTestBoard(t)
	path := b.writeFile(t, "storage/data.json", []byte("{broken"))

	if rec := b.do(http.MethodGet, "/read", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("一覧: 予期しないステータスコード: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if rec := b.do(http.MethodPost, "/", "username=a&message=b"); rec.Code != http.StatusInternalServerError {
		t.Errorf("投稿: 予期しないステータスコード: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	// 壊れたファイルは修復も上書きもされない
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{broken" {
		t.Errorf("保存ファイルが変更されています: %q", data)
	}
}

// failingStore は常に保存に失敗するStore
type failingStore struct{}

func (failingStore) Load() (store.Collection, error) { return store.Collection{}, nil }

func (failingStore) Save(store.Collection) error {
	return errors.Join(store.ErrStorageIO, errors.New("disk full"))
}

// TestSaveFailure は保存に失敗した場合に500が返ることをテストする
func TestSaveFailure(t *testing.T) {
	b := newTestBoard(t, WithStore(failingStore{}))

	rec := b.do(http.MethodPost, "/", "username=a&message=b")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// TestStaticFiles は静的ファイルの配信とContent-Typeをテストする
func TestStaticFiles(t *testing.T) {
	b := newTestBoard(t)

	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	b.writeFile(t, "assets/style.css", []byte("body { color: red; }"))
	b.writeFile(t, "assets/notes.unknownext", []byte("メモ"))
	b.writeFile(t, "assets/logo", pngHeader)
	target := b.writeFile(t, "assets/target.txt", []byte("linked"))
	if err := os.Symlink(target, filepath.Join(b.root, "assets", "alias.css")); err != nil {
		t.Fatalf("シンボリックリンクの作成に失敗しました: %v", err)
	}

	testCases := []struct {
		name     string
		path     string
		wantType string
		exact    bool
		wantBody []byte
	}{
		{"CSS", "/assets/style.css", "text/css", false, []byte("body { color: red; }")},
		{"未知の拡張子", "/assets/notes.unknownext", "text/plain; charset=utf-8", true, []byte("メモ")},
		{"拡張子なし", "/assets/logo", "text/plain", true, pngHeader},
		{"ルート内のシンボリックリンク", "/assets/alias.css", "text/css", false, []byte("linked")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := b.do(http.MethodGet, tc.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusOK)
			}
			ct := rec.Header().Get("Content-Type")
			if tc.exact && ct != tc.wantType {
				t.Errorf("予期しないContent-Type: got %s, want %s", ct, tc.wantType)
			}
			if !tc.exact && !strings.HasPrefix(ct, tc.wantType) {
				t.Errorf("予期しないContent-Type: got %s, want %s", ct, tc.wantType)
			}
			if rec.Body.String() != string(tc.wantBody) {
				t.Errorf("本文が一致しません: %q", rec.Body.String())
			}
		})
	}
}

// TestNotFound は見つからないパスに404ページが返ることをテストする
func TestNotFound(t *testing.T) {
	b := newTestBoard(t)
	b.writeFile(t, "assets/style.css", []byte("body {}"))

	// ルートの外に秘密のファイルを置く
	outside := filepath.Join(filepath.Dir(b.root), filepath.Base(b.root)+"-secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatalf("ファイルの作成に失敗しました: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(outside) })

	if err := os.Symlink(outside, filepath.Join(b.root, "link.txt")); err != nil {
		t.Fatalf("シンボリックリンクの作成に失敗しました: %v", err)
	}

	testCases := []struct {
		name string
		path string
	}{
		{"存在しないファイル", "/does-not-exist.png"},
		{"ディレクトリ", "/assets"},
		{"ルートの外", "/../" + filepath.Base(outside)},
		{"ルートの外へのシンボリックリンク", "/link.txt"},
		{"末尾スラッシュ付きの一覧", "/read/"},
		{"末尾スラッシュ付きの投稿フォーム", "/message/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := b.do(http.MethodGet, tc.path, "")
			if rec.Code != http.StatusNotFound {
				t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusNotFound)
			}
			if !strings.Contains(rec.Body.String(), "404 Not Found") {
				t.Errorf("エラーページが返されていません:\n%s", rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "secret") {
				t.Error("ルートの外のファイルが返されました")
			}
		})
	}
}

// TestMethodNotAllowed はGET/HEAD/POST以外が拒否されることをテストする
func TestMethodNotAllowed(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(http.MethodPut, "/assets/style.css", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// TestRequestID はリクエストIDがレスポンスヘッダーに付与されることをテストする
func TestRequestID(t *testing.T) {
	b := newTestBoard(t)

	rec := b.do(http.MethodGet, "/", "")
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("リクエストIDが付与されていません")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "fixed-id" {
		t.Errorf("クライアントのリクエストIDが使われていません: %q", got)
	}
}

// ヘルパー関数

func strPtr(s string) *string {
	return &s
}

func deref(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
