package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/atlas-daemon/atlasd/daemon"
	"github.com/atlas-daemon/atlasd/errors"
)

const statusDialTimeout = 2 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running daemon's status over its socket",
	Long: `Dial atlasd's Unix domain socket and issue a single atlas.status
JSON-RPC request, printing the pid, uptime, socket path, connection
count, and per-lane concurrency state it reports (spec.md §4.4, enriched
per SPEC_FULL.md supplement 4).`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths, err := daemon.DefaultPaths()
	if err != nil {
		return errors.Wrap(err, "resolve daemon paths")
	}

	conn, err := net.DialTimeout("unix", paths.SocketPath, statusDialTimeout)
	if err != nil {
		return errors.WithHint(errors.Wrap(err, "dial daemon socket"), "is atlasd running? try `atlasd start`")
	}
	defer conn.Close()

	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "atlas.status"}
	b, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode status request")
	}
	if _, err := conn.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "write status request")
	}

	conn.SetReadDeadline(time.Now().Add(statusDialTimeout))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, "read status response")
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return errors.Wrap(err, "decode status response")
	}
	if resp.Error != nil {
		return errors.Newf("atlas.status failed: %s", resp.Error.Message)
	}

	printStatus(resp.Result)
	return nil
}

func printStatus(raw json.RawMessage) {
	var status map[string]interface{}
	if err := json.Unmarshal(raw, &status); err != nil {
		pterm.Error.Println("could not parse status result")
		return
	}

	table := pterm.TableData{{"field", "value"}}
	for _, key := range []string{"pid", "uptimeSeconds", "socket", "connections", "version"} {
		if v, ok := status[key]; ok {
			table = append(table, []string{key, fmt.Sprintf("%v", v)})
		}
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()

	if lanes, ok := status["lanes"].([]interface{}); ok {
		laneTable := pterm.TableData{{"lane", "current", "min", "max", "target"}}
		for _, l := range lanes {
			lm, ok := l.(map[string]interface{})
			if !ok {
				continue
			}
			laneTable = append(laneTable, []string{
				fmt.Sprintf("%v", lm["name"]), fmt.Sprintf("%v", lm["current"]),
				fmt.Sprintf("%v", lm["min"]), fmt.Sprintf("%v", lm["max"]), fmt.Sprintf("%v", lm["target"]),
			})
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(laneTable).Render()
	}
}
