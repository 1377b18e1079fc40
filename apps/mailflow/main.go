package main

import "github.com/mailflow/mailflow/internal/cli"

func main() {
	cli.Execute()
}
