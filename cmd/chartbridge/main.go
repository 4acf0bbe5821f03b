package main

import (
	"github.com/chartbridge/chartbridge/internal/cli"
)

func main() {
	cli.Execute()
}
