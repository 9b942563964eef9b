package main

import "github.com/pribylovaa/training-center/cmd/tcctl/cmd"

func main() {
	cmd.Execute()
}
