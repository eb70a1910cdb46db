package main

import "github.com/lexcodex/codebuddy/app/cmd"

func main() {
	cmd.Execute()
}
