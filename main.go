package main

import "sibterm/cmd"

func main() {
	cmd.Execute()
}
