package main

import "github.com/gazehq/gaze-engine/cmd"

func main() {
	cmd.Execute()
}
