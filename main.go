package main

import "github.com/jsulmar/yarm/cmd"

func main() {
	cmd.Execute()
}
