package main

import (
	"log"

	"github.com/pattabhia/rlvr-pdf-chat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
