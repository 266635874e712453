package main

import "ucams-cli/cmd"

func main() {
	cmd.Execute()
}
