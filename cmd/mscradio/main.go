package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"mscradio/backend"
)

func main() {
	app := &cli.Command{
		Name:  "mscradio",
		Usage: "Convert SoundCloud/YouTube audio into My Summer Car radio and CD tracks",
		Commands: []*cli.Command{
			convertCommand(),
			slotsCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Download and convert a track or playlist into a game slot",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "slot",
				Usage: "target slot: Radio, CD1, CD2 or CD3",
				Value: "Radio",
			},
			&cli.StringSliceFlag{
				Name:  "local",
				Usage: "convert local audio file(s) instead of downloading",
			},
			&cli.BoolFlag{
				Name:  "high-quality",
				Usage: "encode at 320k/48kHz instead of the game-friendly default",
			},
			&cli.BoolFlag{
				Name:  "no-normalize",
				Usage: "skip loudness normalization",
			},
			&cli.StringFlag{
				Name:  "cover",
				Usage: "cover image for CD slots (overrides track thumbnails)",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "write tracks to this folder instead of the detected game slot",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "answer yes to the folder cleanup prompt",
			},
		},
		Action: runConvert,
	}
}

func runConvert(ctx context.Context, cmd *cli.Command) error {
	cfg, err := backend.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	backend.InitLogger(cfg.LogLevel)

	if err := backend.CheckFFmpegInstalled(); err != nil {
		return err
	}

	sourceURL := cmd.Args().First()
	localFiles := cmd.StringSlice("local")
	if sourceURL == "" && len(localFiles) == 0 {
		return fmt.Errorf("nothing to convert: pass a URL or --local files")
	}
	if sourceURL != "" && len(localFiles) > 0 {
		return fmt.Errorf("pass either a URL or --local files, not both")
	}
	for _, f := range localFiles {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("local file not found: %s", f)
		}
	}

	slot, ok := backend.ParseSlot(cmd.String("slot"))
	if !ok {
		return fmt.Errorf("unknown slot %q (use Radio, CD1, CD2 or CD3)", cmd.String("slot"))
	}

	destFolder := cmd.String("output")
	if destFolder == "" {
		gameDir := cfg.GameDir
		if gameDir == "" {
			gameDir = backend.FindGameDir()
		}
		destFolder = slot.Folder(gameDir)
	}

	profile := backend.QualityStandard
	if cmd.Bool("high-quality") || cfg.HighQuality {
		profile = backend.QualityHigh
	}

	runCfg := backend.RunConfig{
		Slot:       slot,
		DestFolder: destFolder,
		Profile:    profile,
		Normalize:  cfg.Normalize && !cmd.Bool("no-normalize"),
		SourceURL:  sourceURL,
		LocalFiles: localFiles,
		CoverPath:  cmd.String("cover"),
		AssumeYes:  cmd.Bool("yes"),
	}

	resolver := backend.NewFallbackResolver()
	fetcher, err := backend.NewFetcher(resolver)
	if err != nil {
		return err
	}
	transcoder, err := backend.NewTranscoder()
	if err != nil {
		return err
	}
	client, err := backend.NewHTTPClient(30*time.Second, cfg.ProxyURL)
	if err != nil {
		return err
	}
	covers, err := backend.NewCoverService(client)
	if err != nil {
		return err
	}
	dest := backend.NewDestination(destFolder, slot.CoverCapable())

	pipeline := backend.NewPipeline(runCfg, fetcher, transcoder, dest, covers, promptConfirm)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	reportCh := make(chan *backend.RunReport, 1)
	go func() {
		reportCh <- pipeline.Run(runCtx)
	}()

	renderEvents(pipeline.Events())
	report := <-reportCh

	history := backend.NewHistory()
	if err := history.Add(backend.RunRecord{
		Slot:      string(slot),
		Source:    describeSource(runCfg),
		State:     string(report.State),
		Succeeded: len(report.Outputs),
		Failed:    len(report.Failures),
		ElapsedMS: report.Elapsed.Milliseconds(),
		StartedAt: startedAt,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save run history: %v\n", err)
	}

	printReport(report, destFolder)

	if report.State == backend.StateFailed {
		if report.Err != "" {
			return fmt.Errorf("%s", report.Err)
		}
		return fmt.Errorf("run failed")
	}
	return nil
}

// renderEvents drains the pipeline event stream, overwriting a single
// progress line and printing one line per finished or failed item.
func renderEvents(events <-chan backend.Event) {
	lineActive := false
	clearLine := func() {
		if lineActive {
			fmt.Print("\r\033[K")
			lineActive = false
		}
	}

	for event := range events {
		switch event.Type {
		case backend.EventProgress:
			p := event.Progress
			line := fmt.Sprintf("[%d/%d] %s", p.Index, p.Total, truncate(p.Title, 50))
			if p.ETASeconds > 0 {
				line += fmt.Sprintf("  ETA %s", formatDuration(p.ETASeconds))
			}
			fmt.Printf("\r\033[K%s", line)
			lineActive = true
		case backend.EventItemDone:
			clearLine()
			fmt.Printf("done  %s  (%s)\n", filepath.Base(event.OutputPath), truncate(event.Title, 60))
		case backend.EventItemFailed:
			clearLine()
			fmt.Printf("skip  %s: %s\n", truncate(event.Title, 50), event.Err)
		case backend.EventRunDone:
			clearLine()
		}
	}
}

func printReport(report *backend.RunReport, destFolder string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"", "Count"})
	t.AppendRow(table.Row{"Converted", len(report.Outputs)})
	t.AppendRow(table.Row{"Skipped", len(report.Failures)})
	t.Render()

	for _, f := range report.Failures {
		fmt.Printf("  skipped %s: %s\n", truncate(f.Source, 60), f.Reason)
	}

	switch report.State {
	case backend.StateFinished:
		fmt.Printf("Finished in %s. Tracks are in %s\n", report.Elapsed.Round(time.Second), destFolder)
	case backend.StateCancelled:
		fmt.Printf("Cancelled after %s. %d track(s) were completed before the stop.\n",
			report.Elapsed.Round(time.Second), len(report.Outputs))
	case backend.StateFailed:
		fmt.Println("No tracks were converted.")
	}
}

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Show the game slot folders and their current contents",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := backend.LoadConfig()
			if err != nil {
				return err
			}
			gameDir := cfg.GameDir
			if gameDir == "" {
				gameDir = backend.FindGameDir()
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Slot", "Folder", "Tracks", "Cover"})
			for _, slot := range backend.AllSlots() {
				folder := slot.Folder(gameDir)
				tracks := countTracks(folder)
				cover := "-"
				if slot.CoverCapable() {
					if _, err := os.Stat(filepath.Join(folder, backend.CoverFileName)); err == nil {
						cover = "yes"
					} else {
						cover = "no"
					}
				}
				t.AppendRow(table.Row{string(slot), folder, tracks, cover})
			}
			t.Render()
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past conversion runs",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entries := backend.NewHistory().Entries()
			if len(entries) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"When", "Slot", "Source", "State", "OK", "Failed", "Took"})
			for _, e := range entries {
				t.AppendRow(table.Row{
					e.StartedAt.Local().Format("2006-01-02 15:04"),
					e.Slot,
					truncate(e.Source, 48),
					e.State,
					e.Succeeded,
					e.Failed,
					(time.Duration(e.ElapsedMS) * time.Millisecond).Round(time.Second),
				})
			}
			t.Render()
			return nil
		},
	}
}

func promptConfirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func describeSource(cfg backend.RunConfig) string {
	if cfg.SourceURL != "" {
		return cfg.SourceURL
	}
	return fmt.Sprintf("%d local file(s)", len(cfg.LocalFiles))
}

func countTracks(folder string) int {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), backend.TrackExt) {
			n++
		}
	}
	return n
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
