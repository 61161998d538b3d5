// Command renewguide is a terminal client for the Renewable Energy AI Guide
// backend: a status dashboard, a chatbot panel and a few one-shot commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "renewguide: %v\n", err)
		os.Exit(1)
	}
}
