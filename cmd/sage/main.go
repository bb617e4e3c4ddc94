package main

import "sage/internal/cli"

func main() {
	cli.Execute()
}
