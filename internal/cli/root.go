// Package cli implements the memoryd commands: the serve daemon plus a small
// HTTP client for poking at a running instance.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverAddr string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memoryd",
	Short: "Two-tier memory coordination service",
	Long:  "Coordinated short-term and long-term memory for multi-agent systems: TTL records, durable documents, versioned world state, and automatic consolidation.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $MEMORYD_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "Server base URL for client commands (default: $MEMORYD_ADDR or http://localhost:8000)")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("MEMORYD_CONFIG")
}

func baseURL() string {
	if serverAddr != "" {
		return strings.TrimRight(serverAddr, "/")
	}
	if env := os.Getenv("MEMORYD_ADDR"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return "http://localhost:8000"
}

// callAPI sends a JSON request to the running daemon and returns the status
// code and raw response body. Transport failures are fatal.
func callAPI(method, path string, payload any) (int, []byte) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			exitErr("encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL()+path, body)
	if err != nil {
		exitErr("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		exitErr("call server", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		exitErr("read response", err)
	}
	return resp.StatusCode, data
}

// printResponse pretty-prints the JSON body, or exits non-zero with the
// server's error message for non-2xx statuses.
func printResponse(status int, body []byte) {
	if status >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			exitErr(fmt.Sprintf("server returned %d", status), fmt.Errorf("%s", e.Error))
		}
		exitErr("server", fmt.Errorf("unexpected status %d", status))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		fmt.Println(`{"ok":true}`)
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

// tierPath maps the --tier flag to its API prefix.
func tierPath(tier string) string {
	switch tier {
	case "short":
		return "/memory/short-term"
	case "long":
		return "/memory/long-term"
	default:
		exitErr("tier", fmt.Errorf("must be short or long, got %q", tier))
		return ""
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
