package main

import "audio-slicer/cmd"

func main() {
	cmd.Execute()
}
