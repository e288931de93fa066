package main

import "github.com/stevemurr/localstate/cli"

func main() {
	cli.Execute()
}
