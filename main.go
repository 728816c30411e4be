package main

import "github.com/FluidXR/adbdetect/cmd"

func main() {
	cmd.Execute()
}
