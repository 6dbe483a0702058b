package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [json]",
		Short: "Store a memory record",
		Long:  "Store a record in the short-term or long-term tier. The JSON payload can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("tier", "t", "short", "Tier: short or long")
	cmd.Flags().Int64("ttl", 0, "TTL in seconds for short-term records (0 = server default, -1 = never expires)")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	tier, _ := cmd.Flags().GetString("tier")
	ttl, _ := cmd.Flags().GetInt64("ttl")

	// Payload: positional arg first, then check stdin
	var payload string
	if len(args) > 0 {
		payload = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			payload = string(b)
		}
	}

	if strings.TrimSpace(payload) == "" {
		exitErr("put", fmt.Errorf("a JSON payload is required (positional arg or stdin)"))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		exitErr("parse payload", err)
	}

	body := map[string]any{"data": data}
	if tier == "short" && ttl != 0 {
		body["ttl_seconds"] = ttl
	}

	status, resp := callAPI(http.MethodPost, tierPath(tier), body)
	printResponse(status, resp)
}
