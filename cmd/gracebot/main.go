package main

import "github.com/Roald87/GraceDB/internal/cli"

func main() {
	cli.Execute()
}
