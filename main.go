package main

import "dmastore/cmd"

func main() {
	cmd.Execute()
}
