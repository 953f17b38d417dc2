package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/zurustar/dtxview/pkg/app"
)

// 埋め込みの譜面セット（charts/<セット名>/）
//
//go:embed charts
var embeddedCharts embed.FS

func main() {
	application := app.New(embeddedCharts)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
