package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spindleworks/novem/config"
	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/server"
)

// StatusCmd inspects a running novem instance over its HTTP API
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bucket occupancy and anchor state of a running instance",
	Long: `Query a running novem server's /api/status endpoint and render the
bucket occupancy, anchor subspace state and traversal metrics.`,
	RunE: runStatus,
}

var statusHost string

func init() {
	StatusCmd.Flags().StringVar(&statusHost, "host", "", "Server address (default localhost with configured port)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	host := statusHost
	if host == "" {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		host = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(host + "/api/status")
	if err != nil {
		return errors.Wrapf(err, "could not reach %s (is novem serve running?)", host)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("server returned %s", resp.Status)
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return errors.Wrap(err, "failed to decode status")
	}

	pterm.DefaultSection.Println("Buckets")
	bucketRows := pterm.TableData{{"Address", "Class", "Residents"}}
	for addr := 0; addr <= 9; addr++ {
		key := strconv.Itoa(addr)
		bucketRows = append(bucketRows, []string{key, addressClass(addr), strconv.Itoa(status.Buckets[key])})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(bucketRows).Render(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("Anchors")
	anchorRows := pterm.TableData{{"Anchor", "Window", "Signal", "Divergence", "Drift"}}
	for _, a := range []string{"3", "6", "9"} {
		snap := status.Anchors[a]
		if snap == nil {
			anchorRows = append(anchorRows, []string{a, "-", "-", "-", "-"})
			continue
		}
		anchorRows = append(anchorRows, []string{
			a,
			strconv.Itoa(snap.WindowLen),
			fmt.Sprintf("%.3f", snap.Signal),
			fmt.Sprintf("%.3f", snap.Divergence),
			strconv.FormatBool(snap.IsDrift),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(anchorRows).Render(); err != nil {
		return err
	}

	if status.Flow != nil {
		pterm.DefaultSection.Println("Traversal")
		pterm.Printf("workers: %d/%d active  steps: %d  rekeys: %d  memory: %.1f%%\n",
			status.Flow.WorkersActive, status.Flow.WorkersTotal,
			status.Flow.StepsTaken, status.Flow.RekeysIssued,
			status.Flow.MemoryPercent)
	}

	pterm.Printf("\ntotal items: %d  clients: %d  version: %s\n",
		status.TotalItems, status.Clients, status.Version.Short())
	return nil
}

func addressClass(addr int) string {
	switch addr {
	case 0:
		return "void"
	case 3, 6, 9:
		return "anchor"
	default:
		return "cycle"
	}
}
