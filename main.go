package main

import "github.com/nextlevelbuilder/vikingbridge/cmd"

func main() {
	cmd.Execute()
}
