// Package main はPDFから画像をローカルで抽出するCLIです。
package main

import (
	"fmt"
	"os"

	"github.com/yourusername/images-extractor/cmd/extract/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
