package main

import "github.com/iksnae/agent-chat/cmd"

func main() {
	cmd.Execute()
}
