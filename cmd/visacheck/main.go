package main

import "github.com/example/visa-checker/cmd"

func main() {
	cmd.Execute()
}
