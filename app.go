package main

import "github.com/masmgr/gitchanges/cmd"

func main() {
	cmd.Run()
}
