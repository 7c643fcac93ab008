package main

import "github.com/shikenmatrix/reporter/cmd/smreporter/commands"

func main() {
	commands.Execute()
}
