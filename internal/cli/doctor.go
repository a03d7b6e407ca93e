package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"github.com/mnemo-oss/mnemo/internal/config"
	"github.com/mnemo-oss/mnemo/internal/history"
	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and environment",
	Long:  "Validate the configuration, the persistence file, the history database and the model endpoint.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("mnemo doctor — checking your environment")
	fmt.Println()
	allOK := true

	fmt.Printf("  Platform:    %s/%s ✓\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version:  %s ✓\n", runtime.Version())

	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Printf("  Config:      INVALID ✗\n    → %v\n", err)
		fmt.Println("    → Run 'mnemo init' to create a scaffold")
		allOK = false
	} else {
		fmt.Printf("  Config:      ok (%s) ✓\n", cfg.LLM.Model)
	}

	if cfg != nil {
		doc, derr := memory.LoadDocument(cfg.Agent.Memory.PersistencePath)
		switch {
		case derr != nil:
			fmt.Printf("  Persistence: UNREADABLE ✗\n    → %v\n", derr)
			allOK = false
		case doc == nil:
			fmt.Println("  Persistence: none yet (fresh start) ✓")
		default:
			fmt.Printf("  Persistence: %s at iteration %d ✓\n", doc.State, doc.Iteration)
		}

		if pid, held := lockHeldBy(cfg.Agent.Memory.PersistencePath); held {
			fmt.Printf("  Lock:        HELD by pid %d ✗\n", pid)
			fmt.Println("    → Another run is active, or a crashed run left a stale lock file")
			allOK = false
		} else {
			fmt.Println("  Lock:        free ✓")
		}

		journal, jerr := history.Open(cfg.History)
		if jerr != nil {
			fmt.Printf("  History:     FAILED ✗\n    → %v\n", jerr)
			allOK = false
		} else {
			fmt.Printf("  History:     %s ✓\n", cfg.History.Driver)
			journal.Close()
		}

		if endpointReachable(cfg.LLM.Endpoint) {
			fmt.Printf("  Endpoint:    %s reachable ✓\n", cfg.LLM.Endpoint)
		} else {
			fmt.Printf("  Endpoint:    %s UNREACHABLE ✗\n", cfg.LLM.Endpoint)
			fmt.Println("    → Is the model server running?")
			allOK = false
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}
	return nil
}

// endpointReachable dials the endpoint's host with a short timeout. Any
// HTTP response counts; only connection failures are reported.
func endpointReachable(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(u.Scheme + "://" + u.Host + "/")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
