package main

import (
	"context"
	"log"
	"os"

	"dengon/internal/config"
	"dengon/internal/server"
)

// 使用方法: dengon [設定ファイル]
// 設定ファイルを省略した場合は DENGON_CONFIG または dengon.yaml を使う
func main() {
	// 設定を読み込む
	var (
		cfg *config.Config
		err error
	)
	if len(os.Args) > 1 {
		cfg, err = config.LoadFile(os.Args[1])
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// サーバーを作成
	srv := server.New(cfg)

	// サーバーを起動（SIGINT/SIGTERMで停止する）
	log.Printf("伝言板サーバーを起動します: %s (保存先: %s)", cfg.ServerAddress(), cfg.Storage.Path)
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
