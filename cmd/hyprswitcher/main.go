package main

import "github.com/HyperAfnan/hypr-switcher/cmd/hyprswitcher/commands"

func main() {
	commands.Execute()
}
