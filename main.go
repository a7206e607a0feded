package main

import "github.com/productdevbook/whichport/cmd"

func main() {
	cmd.Execute()
}
