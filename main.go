package main

import (
	"playwright-mcp/internal/bootstrap"
)

func main() {
	bootstrap.NewApp().Run()
}
