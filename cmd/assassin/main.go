package main

import "github.com/mcoot/assassingame/internal/cli"

func main() {
	cli.Execute()
}
