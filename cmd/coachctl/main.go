package main

import "alcyxob/personal-coach/internal/cli"

func main() {
	cli.Execute()
}
