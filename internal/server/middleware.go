package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// リクエストIDのヘッダー名とコンテキストキー
const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID は各リクエストにIDを付与する
// クライアントが X-Request-ID を送ってきた場合はそれを使う
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog はアクセスログを出力する
func accessLog() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		id, _ := p.Keys[requestIDKey].(string)
		return fmt.Sprintf("%s [%s] \"%s %s\" %d %s %s\n",
			p.TimeStamp.Format(time.RFC3339),
			id,
			p.Method,
			p.Path,
			p.StatusCode,
			p.Latency,
			p.ClientIP,
		)
	})
}

// serialize はリクエストを1件ずつ処理させる
// 保存ファイルの読み込み〜書き戻しが他のリクエストと交差しないようにする
func serialize() gin.HandlerFunc {
	var mu sync.Mutex
	return func(c *gin.Context) {
		mu.Lock()
		defer mu.Unlock()
		c.Next()
	}
}
