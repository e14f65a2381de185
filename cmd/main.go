package main

import (
	"log"

	"github.com/victornm/quizdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("quizdesk: %v", err)
	}
}
