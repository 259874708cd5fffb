package main

import (
	"fmt"
	"os"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
