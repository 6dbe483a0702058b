package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory record",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().StringP("tier", "t", "short", "Tier: short or long")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")

	status, resp := callAPI(http.MethodGet, tierPath(tier)+"/"+args[0], nil)
	printResponse(status, resp)
}
