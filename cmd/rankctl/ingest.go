package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Replay chunk upserts from a JSONL file into the ingestion API",
	Long: `Reads one chunk upsert request per line and posts it to
/v1/chunks, pacing requests so a bulk replay does not starve live
traffic. Lines are the same JSON shape the API accepts.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Duration("pace", 50*time.Millisecond, "delay between requests")
}

func runIngest(cmd *cobra.Command, args []string) error {
	pace, _ := cmd.Flags().GetDuration("pace")

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	client := httpClient()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	count := 0
	success := 0
	failed := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			cmd.PrintErrf("line %d: invalid JSON, skipping\n", count+1)
			failed++
			count++
			continue
		}

		resp, err := client.Post(serverURL+"/v1/chunks", "application/json", bytes.NewReader(line))
		if err != nil {
			cmd.PrintErrf("line %d: %v\n", count+1, err)
			failed++
			count++
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 300 {
			cmd.PrintErrf("line %d: status %d\n", count+1, resp.StatusCode)
			failed++
		} else {
			success++
		}
		count++

		if count%100 == 0 {
			cmd.Printf("Processed %d chunks...\n", count)
		}
		time.Sleep(pace)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	cmd.Printf("Ingest complete. Total: %d, Success: %d, Failed: %d\n", count, success, failed)
	if failed > 0 {
		return fmt.Errorf("%d chunks failed", failed)
	}
	return nil
}
