package main

import "github.com/bryanchriswhite/screenrec/cmd/screenrec/commands"

func main() {
	commands.Execute()
}
