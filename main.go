package main

import "hlsbox/cmd"

func main() {
	cmd.Execute()
}
