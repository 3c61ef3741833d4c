package main

import (
	"github.com/Laisky/github-reader-mcp/cmd"
)

func main() {
	cmd.Execute()
}
