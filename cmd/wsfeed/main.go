// Command wsfeed connects to a push endpoint and prints the events it
// delivers, one JSON object per line.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
