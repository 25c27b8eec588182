package main

import "vecbind/internal/cli"

func main() {
	cli.Execute()
}
