package main

import "github.com/qrave1/SyncRoom/cmd"

func main() {
	cmd.Execute()
}
