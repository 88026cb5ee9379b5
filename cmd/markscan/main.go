package main

import "github.com/eduscan/markscan/cmd/markscan/cmd"

func main() {
	cmd.Execute()
}
