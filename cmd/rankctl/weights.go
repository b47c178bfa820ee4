package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Manage scoring weight sets",
}

var weightsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new (inactive) weight set",
	RunE:  runWeightsCreate,
}

var weightsActivateCmd = &cobra.Command{
	Use:   "activate <set-id>",
	Short: "Activate a weight set, deactivating the previous one",
	Args:  cobra.ExactArgs(1),
	RunE:  runWeightsActivate,
}

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the tenant's active weight set",
	RunE:  runWeightsShow,
}

func init() {
	rootCmd.AddCommand(weightsCmd)
	weightsCmd.AddCommand(weightsCreateCmd, weightsActivateCmd, weightsShowCmd)

	weightsCmd.PersistentFlags().String("tenant", "", "tenant UUID (required)")
	_ = weightsCmd.MarkPersistentFlagRequired("tenant")

	weightsCreateCmd.Flags().String("name", "", "weight set name (required)")
	_ = weightsCreateCmd.MarkFlagRequired("name")
	weightsCreateCmd.Flags().Float64("similarity", 0.55, "similarity weight")
	weightsCreateCmd.Flags().Float64("rerank", 0.20, "rerank weight")
	weightsCreateCmd.Flags().Float64("engagement", 0.15, "engagement weight")
	weightsCreateCmd.Flags().Float64("authority", 0.10, "authority weight")
	weightsCreateCmd.Flags().Duration("recency-half-life", 14*24*time.Hour, "recency decay half-life")
	weightsCreateCmd.Flags().String("model-variant", "", "rerank model variant to pin")
}

func runWeightsCreate(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	similarity, _ := cmd.Flags().GetFloat64("similarity")
	rerank, _ := cmd.Flags().GetFloat64("rerank")
	engagement, _ := cmd.Flags().GetFloat64("engagement")
	authority, _ := cmd.Flags().GetFloat64("authority")
	halfLife, _ := cmd.Flags().GetDuration("recency-half-life")
	variant, _ := cmd.Flags().GetString("model-variant")

	body := map[string]interface{}{
		"tenant_id":              tenant,
		"name":                   name,
		"similarity_weight":      similarity,
		"rerank_weight":          rerank,
		"engagement_weight":      engagement,
		"authority_weight":       authority,
		"recency_half_life_secs": int64(halfLife.Seconds()),
		"model_variant":          variant,
	}
	return postJSON(cmd, serverURL+"/v1/admin/weight-sets", body)
}

func runWeightsActivate(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	target := fmt.Sprintf("%s/v1/admin/weight-sets/%s/activate?tenant_id=%s",
		serverURL, url.PathEscape(args[0]), url.QueryEscape(tenant))
	return postJSON(cmd, target, map[string]interface{}{})
}

func runWeightsShow(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	target := fmt.Sprintf("%s/v1/admin/weight-sets/active?tenant_id=%s", serverURL, url.QueryEscape(tenant))

	resp, err := httpClient().Get(target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(cmd, resp)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(cmd *cobra.Command, target string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient().Post(target, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(cmd, resp)
}

func printResponse(cmd *cobra.Command, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(pretty.String())
	return nil
}
