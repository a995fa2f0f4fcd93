package main

import "github.com/theirongolddev/ctxburn/cmd"

func main() {
	cmd.Execute()
}
