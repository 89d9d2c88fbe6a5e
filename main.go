package main

import "github.com/audiolibrelab/fxhost/cmd"

func main() {
	cmd.Execute()
}
