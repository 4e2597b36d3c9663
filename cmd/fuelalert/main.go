package main

import "fuelalert/cmd/fuelalert/cmd"

func main() {
	cmd.Execute()
}
