package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory record",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().StringP("tier", "t", "short", "Tier: short or long")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")

	status, resp := callAPI(http.MethodDelete, tierPath(tier)+"/"+args[0], nil)
	printResponse(status, resp)
}
