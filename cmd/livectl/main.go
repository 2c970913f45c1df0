// Command livectl runs operator tasks against the Livemarket database:
// schema migrations, demo seeding and on-demand heartbeat sweeps.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
