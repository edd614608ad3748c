package main

import "github.com/OpenTraceLab/OpenTraceKey/cmd/otk/cmd"

func main() {
	cmd.Execute()
}
