// chatweb はチャットコンソールのバックエンドを起動するエントリーポイント。
// サブコマンド: serve（デフォルト）, migrate, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/ishit08/chat-web/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
