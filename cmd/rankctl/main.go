// rankctl is the operator CLI for the retrieval engine: it manages
// scoring weight sets and ANN profiles, and replays content into the
// ingestion API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "rankctl",
	Short: "Retrieval engine operations CLI",
	Long: `rankctl manages a running retrieval engine over its HTTP API.

Example usage:
  rankctl weights create --tenant <id> --name exp-a --similarity 0.5 ...
  rankctl weights activate <set-id> --tenant <id>
  rankctl weights show --tenant <id>
  rankctl profile set --tenant <id> --probes 20 --ef-search 120
  rankctl ingest chunks.jsonl --tenant <id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("RETRIEVAL_URL", "http://localhost:9020"), "retrieval engine base URL")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
