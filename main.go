package main

import "github.com/roadsight/vannot/cmd"

func main() {
	cmd.Execute()
}
