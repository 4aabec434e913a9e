package main

import "socialfeed/cmd"

func main() {
	cmd.Run()
}
