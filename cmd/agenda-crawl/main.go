package main

import "github.com/massalia/agenda/internal/cli"

func main() {
	cli.Execute()
}
