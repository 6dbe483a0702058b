package cli

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	worldCmd := &cobra.Command{
		Use:   "world",
		Short: "Inspect and mutate the shared world state",
	}

	worldCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current world state",
		Run: func(cmd *cobra.Command, args []string) {
			status, resp := callAPI(http.MethodGet, "/world-state", nil)
			printResponse(status, resp)
		},
	})

	worldCmd.AddCommand(&cobra.Command{
		Use:   "update <json>",
		Short: "Merge a partial update into the world state",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var updates map[string]any
			if err := json.Unmarshal([]byte(args[0]), &updates); err != nil {
				exitErr("parse updates", err)
			}
			status, resp := callAPI(http.MethodPost, "/world-state/update", map[string]any{"updates": updates})
			printResponse(status, resp)
		},
	})

	worldCmd.AddCommand(&cobra.Command{
		Use:   "version <n>",
		Short: "Show a historical world-state version",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			status, resp := callAPI(http.MethodGet, "/world-state/version/"+args[0], nil)
			printResponse(status, resp)
		},
	})

	worldCmd.AddCommand(&cobra.Command{
		Use:   "rollback <n>",
		Short: "Restore a historical version as a new forward version",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				exitErr("parse version", err)
			}
			status, resp := callAPI(http.MethodPost, "/world-state/rollback", map[string]any{"version": v})
			printResponse(status, resp)
		},
	})

	RootCmd.AddCommand(worldCmd)
}
