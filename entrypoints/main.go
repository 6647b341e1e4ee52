package main

import (
	"github.com/Laisky/agency-site/cmd"
)

func main() {
	cmd.Execute()
}
