package main

import "github.com/vsporte/fhm-matches/internal/cli"

func main() {
	cli.Execute()
}
