package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	lockCmd := &cobra.Command{
		Use:   "lock <id>",
		Short: "Lock a short-term record against expiry and consolidation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			status, resp := callAPI(http.MethodPost, "/memory/short-term/"+args[0]+"/lock", nil)
			printResponse(status, resp)
		},
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock <id>",
		Short: "Unlock a short-term record and restore its TTL",
		Args:  cobra.ExactArgs(1),
		Run:   runUnlock,
	}
	unlockCmd.Flags().Int64("ttl", 0, "TTL in seconds to apply after unlocking (0 = server default, -1 = never expires)")

	RootCmd.AddCommand(lockCmd, unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) {
	ttl, _ := cmd.Flags().GetInt64("ttl")

	body := map[string]any{}
	if ttl != 0 {
		body["ttl_seconds"] = ttl
	}
	status, resp := callAPI(http.MethodPost, "/memory/short-term/"+args[0]+"/unlock", body)
	printResponse(status, resp)
}
