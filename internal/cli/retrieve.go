package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve <long-term-id>",
		Short: "Copy a long-term record back into the short-term tier",
		Args:  cobra.ExactArgs(1),
		Run:   runRetrieve,
	}

	cmd.Flags().Int64("ttl", 0, "TTL in seconds for the short-term copy (0 = server default, -1 = never expires)")

	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	ttl, _ := cmd.Flags().GetInt64("ttl")

	body := map[string]any{}
	if ttl != 0 {
		body["ttl_seconds"] = ttl
	}
	status, resp := callAPI(http.MethodPost, "/memory/long-term/"+args[0]+"/retrieve", body)
	printResponse(status, resp)
}
