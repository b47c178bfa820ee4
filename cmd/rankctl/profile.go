package main

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage ANN runtime profiles",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the tenant's ANN runtime profile",
	RunE:  runProfileSet,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileSetCmd)

	profileCmd.PersistentFlags().String("tenant", "", "tenant UUID (required)")
	_ = profileCmd.MarkPersistentFlagRequired("tenant")

	profileSetCmd.Flags().Int("probes", 10, "ivfflat probes")
	profileSetCmd.Flags().Int("ef-search", 80, "hnsw ef_search")
	profileSetCmd.Flags().Int("min-candidates", 20, "minimum candidate pool size")
	profileSetCmd.Flags().Int("max-candidates", 200, "maximum candidate pool size")
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	probes, _ := cmd.Flags().GetInt("probes")
	efSearch, _ := cmd.Flags().GetInt("ef-search")
	minCandidates, _ := cmd.Flags().GetInt("min-candidates")
	maxCandidates, _ := cmd.Flags().GetInt("max-candidates")

	body := map[string]interface{}{
		"tenant_id":      tenant,
		"probes":         probes,
		"ef_search":      efSearch,
		"min_candidates": minCandidates,
		"max_candidates": maxCandidates,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, serverURL+"/v1/admin/ann-profiles", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(cmd, resp)
}
