// Command taskexec is the task assistant: a CLI over the task tools, a REST
// server, and an MCP server, all backed by the same code-as-plan executor.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: "+err.Error()))
		os.Exit(1)
	}
}
