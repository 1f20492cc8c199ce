package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Pipeline orchestration: drives classification, fetching and
// transcoding for a whole run on a single worker goroutine, publishing
// immutable progress snapshots to the reporting side.

// WorkItemKind distinguishes remote downloads from local conversions.
type WorkItemKind string

const (
	WorkItemRemote WorkItemKind = "remote"
	WorkItemLocal  WorkItemKind = "local"
)

// WorkItem is one unit of work. Immutable once the work queue is built.
// Index is the assigned 1-based output index.
type WorkItem struct {
	Kind      WorkItemKind
	SourceURL string
	FilePath  string
	Index     int
}

// RunState is the pipeline state machine.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateRunning   RunState = "running"
	StateFinished  RunState = "finished"
	StateCancelled RunState = "cancelled"
	StateFailed    RunState = "failed"
)

// RunProgress is an immutable progress snapshot.
type RunProgress struct {
	Index      int
	Total      int
	Title      string
	Percent    int
	ETASeconds int
}

// EventType tags pipeline events.
type EventType string

const (
	EventProgress   EventType = "progress"
	EventItemDone   EventType = "item_done"
	EventItemFailed EventType = "item_failed"
	EventRunDone    EventType = "run_done"
)

// Event is published to the reporting side. Delivery is best effort:
// any event may be dropped when the consumer stops draining the
// channel. The RunReport returned by Run is the authoritative record
// of the run regardless of which events were observed.
type Event struct {
	Type       EventType
	Progress   RunProgress
	Index      int
	Title      string
	OutputPath string
	Err        string
	Report     *RunReport
}

// ItemFailure records one skipped item in the final report.
type ItemFailure struct {
	Index  int
	Source string
	Reason string
}

// RunReport aggregates a finished run.
type RunReport struct {
	State    RunState
	Outputs  []string
	Failures []ItemFailure
	Elapsed  time.Duration
	Err      string
}

// TrackFetcher downloads one track and extracts its metadata.
type TrackFetcher interface {
	Fetch(ctx context.Context, trackURL, destStem string) (*FetchResult, error)
}

// TrackConverter transcodes one fetched file into the destination.
type TrackConverter interface {
	Convert(ctx context.Context, req ConvertRequest) (string, error)
}

// Pipeline runs one conversion job from classification to cover
// finalization. Create one per run; it is not reusable.
type Pipeline struct {
	cfg       RunConfig
	fetcher   TrackFetcher
	converter TrackConverter
	dest      *Destination
	covers    CoverSource
	confirm   ConfirmFunc

	events chan Event
	perf   *PerformanceWindow

	mu           sync.Mutex
	lastProgress RunProgress
	runCtx       context.Context
	closed       bool

	eta *etaCountdown
}

// NewPipeline assembles a pipeline for one run.
func NewPipeline(cfg RunConfig, fetcher TrackFetcher, converter TrackConverter, dest *Destination, covers CoverSource, confirm ConfirmFunc) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		converter: converter,
		dest:      dest,
		covers:    covers,
		confirm:   confirm,
		events:    make(chan Event, 64),
		perf:      NewPerformanceWindow(),
	}
	p.eta = newEtaCountdown(p.republishETA)
	return p
}

// Events returns the snapshot channel. It is closed when Run returns.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// Run executes the whole pipeline on the calling goroutine and blocks
// until it reaches a terminal state. Cancel via the context; the check
// happens at item boundaries only, so an in-flight download or encode
// always runs to natural completion first.
func (p *Pipeline) Run(ctx context.Context) (report *RunReport) {
	start := time.Now()

	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()

	defer func() {
		// Unexpected failures anywhere in the worker become a run-level
		// error instead of crashing the process.
		if r := recover(); r != nil {
			slog.Error("pipeline panic", "err", r)
			report = p.finish(&RunReport{
				State:   StateFailed,
				Elapsed: time.Since(start),
				Err:     fmt.Sprintf("internal error: %v", r),
			})
		}
	}()
	defer p.eta.halt()

	items, err := p.prepare(ctx)
	if err != nil {
		return p.finish(&RunReport{State: StateFailed, Elapsed: time.Since(start), Err: err.Error()})
	}

	total := len(items)
	var outputs []string
	var failures []ItemFailure
	coverSrc := p.cfg.CoverPath

	for processed, item := range items {
		// Cooperative cancellation, item boundary only.
		if ctx.Err() != nil {
			return p.finish(&RunReport{
				State:    StateCancelled,
				Outputs:  outputs,
				Failures: failures,
				Elapsed:  time.Since(start),
			})
		}

		outPath, result, itemErr := p.processItem(ctx, item, total)
		if itemErr != nil {
			failures = append(failures, ItemFailure{
				Index:  item.Index,
				Source: itemSource(item),
				Reason: itemErr.Error(),
			})
			p.emit(Event{Type: EventItemFailed, Index: item.Index, Title: itemTitle(item, result), Err: itemErr.Error()})
			continue
		}

		outputs = append(outputs, outPath)

		remaining := total - processed - 1
		eta := p.perf.EstimateETA(remaining)
		p.publishProgress(RunProgress{
			Index:      item.Index,
			Total:      total,
			Title:      itemTitle(item, result),
			Percent:    (processed + 1) * 100 / total,
			ETASeconds: eta,
		})
		p.eta.set(eta)
		if remaining > 0 {
			p.eta.ensureRunning()
		}

		p.emit(Event{Type: EventItemDone, Index: item.Index, Title: itemTitle(item, result), OutputPath: outPath})

		// First usable thumbnail becomes the cover candidate unless the
		// user supplied one up front.
		if p.dest.CoverCapable && coverSrc == "" && result != nil && result.Thumbnail != "" {
			if path, err := p.covers.FetchThumbnail(ctx, result.Thumbnail); err == nil {
				coverSrc = path
			} else {
				slog.Debug("thumbnail download failed", "err", err)
			}
		}
	}

	p.eta.halt()
	p.finalizeCover(coverSrc)

	state := StateFinished
	var runErr string
	if ctx.Err() != nil {
		state = StateCancelled
	} else if len(outputs) == 0 {
		state = StateFailed
		runErr = "no tracks processed"
	}

	return p.finish(&RunReport{
		State:    state,
		Outputs:  outputs,
		Failures: failures,
		Elapsed:  time.Since(start),
		Err:      runErr,
	})
}

// prepare classifies the input, readies the destination folder and
// builds the immutable work queue. Destructive cleanup (with its
// confirmation gate) happens before any network access.
func (p *Pipeline) prepare(ctx context.Context) (items []WorkItem, err error) {
	if err := p.dest.Ensure(); err != nil {
		return nil, err
	}

	local := p.cfg.LocalFiles
	remoteURL := p.cfg.SourceURL

	var classification Classification
	if remoteURL != "" {
		classification = ClassifyURL(remoteURL)
		if classification.Kind == KindInvalid {
			return nil, &ClassificationError{URL: remoteURL, Reason: "invalid link, not a recognized SoundCloud/YouTube URL"}
		}
	} else if len(local) == 0 {
		return nil, fmt.Errorf("no tracks to process")
	}

	// A lone remote track appends to the existing set; everything else
	// is a batch run that replaces the folder contents.
	singleTrack := remoteURL != "" && classification.Kind == KindSingleTrack && len(local) == 0

	if !singleTrack {
		if err := p.prepareBatchFolder(); err != nil {
			return nil, err
		}
	}

	var urls []string
	switch {
	case remoteURL == "":
		// Local-only run.
	case classification.Kind == KindPlaylist:
		urls, err = ExpandPlaylist(ctx, remoteURL)
		if err != nil {
			return nil, err
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("playlist is empty or unavailable")
		}
	default:
		urls = []string{remoteURL}
	}

	startIndex := 1
	if singleTrack {
		startIndex, err = p.dest.NextTrackIndex()
		if err != nil {
			return nil, err
		}
	}

	for i, u := range urls {
		items = append(items, WorkItem{Kind: WorkItemRemote, SourceURL: u, Index: startIndex + i})
	}
	for i, f := range local {
		items = append(items, WorkItem{Kind: WorkItemLocal, FilePath: f, Index: startIndex + len(urls) + i})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no tracks to process")
	}
	return items, nil
}

func (p *Pipeline) prepareBatchFolder() error {
	confirm := p.confirm
	if p.cfg.AssumeYes {
		confirm = func(string) bool { return true }
	}
	if err := p.dest.PrepareForBatch(confirm); err != nil {
		return err
	}
	return nil
}

// processItem runs fetch (remote only) and convert for one item,
// recording wall-clock durations in the performance window on success.
func (p *Pipeline) processItem(ctx context.Context, item WorkItem, total int) (string, *FetchResult, error) {
	var result *FetchResult
	var downloadSeconds float64
	inputPath := item.FilePath
	deleteOriginal := false
	var tags TagSet

	if item.Kind == WorkItemRemote {
		p.publishProgress(RunProgress{
			Index: item.Index,
			Total: total,
			Title: item.SourceURL,
		})

		start := time.Now()
		fetched, err := p.fetcher.Fetch(ctx, item.SourceURL, fmt.Sprintf("track%d", item.Index))
		if err != nil {
			return "", nil, err
		}
		downloadSeconds = time.Since(start).Seconds()

		result = fetched
		inputPath = fetched.LocalPath
		deleteOriginal = true
		tags = remoteTags(fetched, total == 1)
	} else {
		p.publishProgress(RunProgress{
			Index: item.Index,
			Total: total,
			Title: filepath.Base(item.FilePath),
		})
	}

	start := time.Now()
	outPath, err := p.converter.Convert(ctx, ConvertRequest{
		InputPath:      inputPath,
		Index:          item.Index,
		DestFolder:     p.dest.Folder,
		Profile:        p.cfg.Profile,
		Normalize:      p.cfg.Normalize,
		Tags:           tags,
		DeleteOriginal: deleteOriginal,
	})
	if err != nil {
		// The downloaded temp never survives past its item, even when
		// conversion fails.
		if item.Kind == WorkItemRemote {
			if rmErr := os.Remove(inputPath); rmErr != nil && !os.IsNotExist(rmErr) {
				slog.Debug("failed to remove download after failed conversion", "err", rmErr)
			}
		}
		return "", result, err
	}

	p.perf.Record(downloadSeconds, time.Since(start).Seconds())
	return outPath, result, nil
}

// remoteTags builds the tag set for a fetched track. Single-track
// additions get the full metadata; batch items are tagged with the
// title only.
func remoteTags(result *FetchResult, single bool) TagSet {
	if !single {
		return TagSet{Title: result.Title}
	}

	artist := result.Artist
	if artist == "" {
		artist = result.Uploader
	}
	return TagSet{
		Title:   result.Title,
		Artist:  artist,
		Genre:   result.Genre,
		Comment: LengthComment(result.Duration),
	}
}

// finalizeCover writes the square cover image when the destination
// supports one and any source is available. Without a source no cover
// file is written at all.
func (p *Pipeline) finalizeCover(coverSrc string) {
	if !p.dest.CoverCapable || coverSrc == "" {
		return
	}
	if err := p.covers.Finalize(coverSrc, p.dest.CoverPath()); err != nil {
		slog.Warn("failed to write cover art", "err", err)
	}
}

// finish halts the countdown, publishes the terminal event and closes
// the stream. halt blocks until the ticker goroutine has exited, so by
// the time the channel closes nothing can publish into it anymore.
func (p *Pipeline) finish(report *RunReport) *RunReport {
	p.eta.halt()
	p.sendEvent(Event{Type: EventRunDone, Report: report, Err: report.Err})

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	close(p.events)
	return report
}

// publishProgress stores and emits an immutable snapshot.
func (p *Pipeline) publishProgress(progress RunProgress) {
	p.mu.Lock()
	p.lastProgress = progress
	p.mu.Unlock()
	p.emit(Event{Type: EventProgress, Progress: progress})
}

// republishETA re-emits the latest snapshot with an updated countdown.
// Called once per second from the ETA ticker goroutine.
func (p *Pipeline) republishETA(seconds int) {
	p.mu.Lock()
	progress := p.lastProgress
	p.mu.Unlock()
	progress.ETASeconds = seconds
	p.emit(Event{Type: EventProgress, Progress: progress})
}

// emit publishes a non-terminal event. Events scheduled after
// cancellation or after the stream has closed are suppressed at the
// moment of marshaling so the reporting side never sees updates racing
// a finished run.
func (p *Pipeline) emit(event Event) {
	p.mu.Lock()
	ctx := p.runCtx
	closed := p.closed
	p.mu.Unlock()
	if closed || (ctx != nil && ctx.Err() != nil) {
		return
	}
	p.sendEvent(event)
}

func (p *Pipeline) sendEvent(event Event) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	select {
	case p.events <- event:
	default:
		// Consumer stopped draining; drop rather than deadlock the
		// worker. The Run return value still carries the full report.
	}
}

func itemSource(item WorkItem) string {
	if item.Kind == WorkItemRemote {
		return item.SourceURL
	}
	return item.FilePath
}

func itemTitle(item WorkItem, result *FetchResult) string {
	if result != nil && result.Title != "" {
		return result.Title
	}
	if item.Kind == WorkItemLocal {
		return filepath.Base(item.FilePath)
	}
	return item.SourceURL
}

// etaCountdown decrements the published ETA once per second between
// item completions, so the UI counts down smoothly instead of jumping
// when each item finishes. stop and done belong to the currently
// running goroutine; both are nil while no goroutine runs.
type etaCountdown struct {
	mu      sync.Mutex
	seconds int
	stop    chan struct{}
	done    chan struct{}
	publish func(seconds int)
}

func newEtaCountdown(publish func(int)) *etaCountdown {
	return &etaCountdown{publish: publish}
}

// set replaces the countdown value.
func (e *etaCountdown) set(seconds int) {
	e.mu.Lock()
	e.seconds = seconds
	e.mu.Unlock()
}

// ensureRunning starts the ticking goroutine if it is not already
// running. Restarted opportunistically after each item completes.
func (e *etaCountdown) ensureRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return
	}

	// Captured locally: the fields are reset by halt or by the
	// goroutine retiring itself, and must not be re-read afterwards.
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stop, e.done = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.seconds <= 0 {
					if e.stop == stop {
						e.stop, e.done = nil, nil
					}
					e.mu.Unlock()
					return
				}
				e.seconds--
				remaining := e.seconds
				e.mu.Unlock()
				e.publish(remaining)
			}
		}
	}()
}

// halt stops the ticker and waits for the goroutine to exit, so no
// publish call can land after halt returns. Safe to call repeatedly.
func (e *etaCountdown) halt() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
