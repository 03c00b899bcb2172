package main

import "dockersleuth/internal/cli"

func main() {
	cli.Execute()
}
