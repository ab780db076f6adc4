package main

import "github.com/lonitor/lonitor/internal/cli"

func main() {
	cli.Execute()
}
