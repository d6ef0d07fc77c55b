package main

import "github.com/kashguard/go-horde-sdk/cmd"

func main() {
	cmd.Execute()
}
