package cli

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [json query]",
		Short: "Search records by exact field match",
		Long:  "Search a tier for records whose fields equal every field of the JSON query. An empty query lists everything up to the limit.",
		Run:   runSearch,
	}

	cmd.Flags().StringP("tier", "t", "short", "Tier: short or long")
	cmd.Flags().IntP("limit", "l", 0, "Maximum results (0 = server default)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")

	query := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal([]byte(args[0]), &query); err != nil {
			exitErr("parse query", err)
		}
	}

	status, resp := callAPI(http.MethodPost, tierPath(tier)+"/search", map[string]any{
		"query": query,
		"limit": limit,
	})
	printResponse(status, resp)
}
