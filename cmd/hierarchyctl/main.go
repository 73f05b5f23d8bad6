package main

import "market-hierarchy/internal/cli"

func main() {
	cli.Execute()
}
