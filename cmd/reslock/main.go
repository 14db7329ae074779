package main

import "github.com/ezraisw/reslock/cmd/reslock/cmd"

func main() {
	cmd.Execute()
}
