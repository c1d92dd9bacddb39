package main

import "github.com/mcoot/chathub/internal/cli"

func main() {
	cli.Execute()
}
