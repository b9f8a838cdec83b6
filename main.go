package main

import (
	"log"
	"os"

	"github.com/am6737/zenset/cmd"
)

func main() {
	err := cmd.App.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
