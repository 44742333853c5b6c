// cmd/studio/main.go
// studio 是 ShortsStudio 的命令行入口：生成脚本、生成配图、编辑图片
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultBackend).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
