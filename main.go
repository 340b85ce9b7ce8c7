package main

import "github.com/weftlab/weft/cli"

func main() {
	cli.Execute()
}
