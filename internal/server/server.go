package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dengon/internal/config"
	"dengon/internal/render"
	"dengon/internal/store"

	"github.com/gin-gonic/gin"
)

// defaultShutdownTimeout は設定が無い場合のシャットダウン待ち時間
const defaultShutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	httpServer *http.Server
	engine     *gin.Engine

	ready chan struct{}
	addr  net.Addr
}

// Option はServerの依存を差し替える
type Option func(*options)

type options struct {
	store    store.Store
	renderer render.Renderer
	clock    *store.Clock
}

// WithStore は保存先を差し替える
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRenderer は一覧ページのRendererを差し替える
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithClock はレコードキーのClockを差し替える
func WithClock(c *store.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, opts ...Option) *Server {
	o := options{
		store:    store.NewFileStore(cfg.Storage.Path),
		renderer: render.NewTemplateRenderer(cfg.Site.Root, cfg.Site.Template),
		clock:    store.NewClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	// 完全一致しないパスは静的ファイルとして扱うため、末尾スラッシュのリダイレクトはしない
	engine.RedirectTrailingSlash = false

	handler := &BoardHandler{
		store:    o.store,
		renderer: o.renderer,
		clock:    o.clock,
		pages:    newPageSet(cfg.Site.Root),
		root:     cfg.Site.Root,
	}
	setupRoutes(engine, handler)

	return &Server{
		config: cfg,
		engine: engine,
		ready:  make(chan struct{}),
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// setupRoutes はHTTPルートを設定する
// GETは完全一致のルートを優先し、それ以外は静的ファイルとして扱う
func setupRoutes(engine *gin.Engine, h *BoardHandler) {
	engine.Use(gin.Recovery(), requestID(), accessLog(), serialize())

	for _, route := range []struct {
		path    string
		handler gin.HandlerFunc
	}{
		{"/", h.Home},
		{"/message", h.Compose},
		{"/read", h.Read},
	} {
		engine.GET(route.path, route.handler)
		engine.HEAD(route.path, route.handler)
	}

	// POSTはパスに関係なく投稿として扱う
	engine.POST("/*path", h.Submit)

	// 静的ファイル（見つからなければ404ページ）
	engine.NoRoute(h.Static)
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Ready はリッスンを開始すると閉じられるチャンネルを返す
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr は実際にリッスンしているアドレスを返す
// Ready が閉じられるまでは nil
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.addr
	default:
		return nil
	}
}

// Start はサーバーを起動する
// コンテキストのキャンセルかシグナルを受け取るまでブロックする
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.addr)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをシャットダウンする
// 新しい接続の受け付けを止め、処理中のリクエストをタイムアウトまで待つ
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
