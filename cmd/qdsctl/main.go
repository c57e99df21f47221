package main

import (
	"github.com/qdsearch/search-core/internal/cli"
)

func main() {
	cli.Execute()
}
