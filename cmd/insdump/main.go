package main

import (
	"os"

	"github.com/go-delve/insdump/cmd/insdump/cmds"
)

func main() {
	os.Exit(cmds.Execute(os.Args[1:]))
}
