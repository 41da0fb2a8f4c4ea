package main

import (
	"os"
	"zback/cmd"
)

func main() {
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}
	cmd.Execute()
}
