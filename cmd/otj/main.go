package main

import "github.com/OpenTraceLab/OpenTraceSplit/cmd/otj/cmd"

func main() {
	cmd.Execute()
}
