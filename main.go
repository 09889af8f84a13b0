package main

import "github.com/atikulmunna/lognorm/internal/cmd"

func main() {
	cmd.Execute()
}
