// orato-cli drives the recording pipeline headless: record a practice take
// from the terminal, upload it, and wait for processing feedback.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
