package commands

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spindleworks/novem/archive"
	"github.com/spindleworks/novem/config"
	"github.com/spindleworks/novem/digit"
	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/flow"
	"github.com/spindleworks/novem/item"
	"github.com/spindleworks/novem/judge"
	"github.com/spindleworks/novem/logger"
	"github.com/spindleworks/novem/store"
	"github.com/spindleworks/novem/subspace"
)

// FeedCmd runs a self-contained traversal demo
var FeedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Run a self-contained traversal demo",
	Long: `Stand up an in-process store, ingest a batch of randomized items,
run background traversal for a while and report where everything ended up.

Useful for getting a feel for judgment behavior under different thresholds
without running the full server.`,
	RunE: runFeed,
}

var (
	feedItems    int
	feedDuration time.Duration
	feedSeed     int64
)

func init() {
	FeedCmd.Flags().IntVar(&feedItems, "items", 50, "Number of items to ingest")
	FeedCmd.Flags().DurationVar(&feedDuration, "duration", 3*time.Second, "How long to run traversal")
	FeedCmd.Flags().Int64Var(&feedSeed, "seed", 0, "Random seed (0 = time-based)")
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	seed := feedSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	j := judge.New(cfg.JudgeConfig())
	monitor := subspace.NewMonitor(cfg.MonitorParams())
	sink := archive.NewMemorySink(cfg.Archive.Retention)
	st := store.New(j, monitor, sink, cfg.StoreOptions())
	defer st.Close()

	// Count judgments and absorptions as they happen
	events, unsubscribe := st.Subscribe()
	defer unsubscribe()
	counts := make(map[store.EventKind]int)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			counts[ev.Kind]++
		}
	}()

	pterm.Info.Printf("Ingesting %d items (seed %d)\n", feedItems, seed)
	for i := 0; i < feedItems; i++ {
		var dist [9]float64
		for s := range dist {
			dist[s] = rng.Float64()
		}
		ch := item.Channels{
			Character: rng.Float64() * 4,
			Logic:     rng.Float64() * 4,
			Affect:    rng.Float64() * 4,
		}
		if _, err := st.Ingest(dist, ch, rng.Float64(), uint64(rng.Intn(1000)+1)); err != nil {
			return errors.Wrap(err, "ingest failed")
		}
	}

	fc := flowConfig(cfg)
	fc.SweepInterval = 20 * time.Millisecond
	pool := flow.NewPool(st, fc, logger.Logger)
	pool.Start()

	pterm.Info.Printf("Traversing for %s...\n", feedDuration)
	time.Sleep(feedDuration)
	pool.Stop()

	st.Close() // closes the event stream so the counter drains
	<-done

	rows := pterm.TableData{{"Bucket", "Class", "Residents"}}
	remaining := 0
	for addr := 0; addr <= 9; addr++ {
		n := st.Len(digit.Address(addr))
		remaining += n
		rows = append(rows, []string{strconv.Itoa(addr), addressClass(addr), strconv.Itoa(n)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	pterm.Printf("\nsteps: %d  rekeys: %d\n", pool.StepsTaken(), pool.RekeysIssued())
	pterm.Printf("judgments: %d  absorbed: %d  high-value offers: %d\n",
		counts[store.EventJudgment], counts[store.EventAbsorb], counts[store.EventHighValue])
	pterm.Printf("remaining items: %d  archived: %d\n", remaining, len(sink.Items()))
	return nil
}
