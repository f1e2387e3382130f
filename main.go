package main

import "github.com/taskfire/taskfire-go/cmd"

func main() {
	cmd.Execute()
}
