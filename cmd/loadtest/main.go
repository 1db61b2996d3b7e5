// Command loadtest runs a latency load test against a queue-backed task API
// and compares the results of two runs.
package main

import (
	"os"

	"github.com/fairyhunter13/queue-latency-bench/cmd/loadtest/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
