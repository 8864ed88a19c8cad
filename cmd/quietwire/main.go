// The entrypoint for the quietwire CLI.
package main

import (
	"log"

	"quietwire/cmd/quietwire/commands"
)

// Initialises and executes the command hierarchy.
func main() {
	if err := commands.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
