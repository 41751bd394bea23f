package main

import (
	"github.com/silverlining-sec/nimbus/cmd"
)

func main() {
	cmd.Execute()
}
