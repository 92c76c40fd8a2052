package main

import (
	"github.com/vietddude/batcher/internal/cli"
)

func main() {
	cli.Execute()
}
