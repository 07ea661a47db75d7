// Package agent drives the chat page: it reads a job out of the URL
// fragment, types it into the page, waits out generation and posts the
// scraped result table back over the webhook.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/recap-reports/recap/internal/aggregator"
	"github.com/recap-reports/recap/internal/config"
)

// State names the stages of the automation. One job per browsing
// context: a new trigger while any non-Idle state is active is refused.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateSubmitting
	StateAwaitingResponse
	StateScraping
	StateDelivering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateScraping:
		return "scraping"
	case StateDelivering:
		return "delivering"
	}
	return "unknown"
}

var (
	// ErrBusy rejects a second trigger while a job is in flight
	ErrBusy = errors.New("a job is already in flight")
	// ErrNoJob means the fragment was absent or not a report prompt
	ErrNoJob = errors.New("fragment does not carry a job")
	// ErrPageNotReady means the input affordances never appeared
	ErrPageNotReady = errors.New("page never became ready for input")
	// ErrGenerationTimeout means the response never stabilized
	ErrGenerationTimeout = errors.New("generation never completed")
)

// Deliverer is the return channel. Satisfied by webhook.Client.
type Deliverer interface {
	Deliver(ctx context.Context, tableData [][]string) error
}

// Config carries the timing knobs and page selectors
type Config struct {
	Headless        bool
	Selectors       config.Selectors
	PollInterval    time.Duration // Affordance poll cadence
	ResponsePoll    time.Duration // Generation-complete poll cadence
	ReadyTimeout    time.Duration
	ResponseTimeout time.Duration
	SettleDelay     time.Duration // Between injecting text and submitting
	ScrapeSettle    time.Duration // Render-completion lag before scraping
}

// ConfigFromChat converts the yaml-level chat settings
func ConfigFromChat(cfg config.ChatConfig) Config {
	return Config{
		Headless:        cfg.Headless,
		Selectors:       cfg.Selectors,
		PollInterval:    time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		ResponsePoll:    time.Duration(cfg.ResponsePollMs) * time.Millisecond,
		ReadyTimeout:    time.Duration(cfg.ReadyTimeoutSec) * time.Second,
		ResponseTimeout: time.Duration(cfg.ResponseTimeoutSec) * time.Second,
		SettleDelay:     time.Duration(cfg.SettleDelayMs) * time.Millisecond,
		ScrapeSettle:    time.Duration(cfg.ScrapeSettleMs) * time.Millisecond,
	}
}

type Agent struct {
	cfg       Config
	deliverer Deliverer

	mu    sync.Mutex
	state State
}

func New(cfg Config, d Deliverer) *Agent {
	return &Agent{cfg: cfg, deliverer: d}
}

func (a *Agent) acquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return false
	}
	a.state = StateDispatching
	return true
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	log.Printf("Agent: %s", s)
}

// State returns the current stage, for status display
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Run opens a fresh browsing context on pageURL and works the job carried
// in its fragment. Closing the context mid-flight abandons the job with
// no hosted-side awareness; the caller has already been warned of that.
func (a *Agent) Run(ctx context.Context, pageURL string) error {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.WindowSize(1440, 900),
	}
	if a.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(pageURL), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("failed to open chat page: %w", err)
	}

	return a.work(taskCtx)
}

// work is the state machine proper, Idle through Delivering
func (a *Agent) work(ctx context.Context) error {
	if !a.acquire() {
		return ErrBusy
	}
	defer a.setState(StateIdle)

	// Idle -> Dispatching: only a fragment bearing the instruction
	// header is a job; anything else is the page's own routing state.
	var frag string
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		`decodeURIComponent(window.location.hash.slice(1))`, &frag)); err != nil {
		return fmt.Errorf("failed to read fragment: %w", err)
	}
	if !aggregator.IsJobText(frag) {
		return ErrNoJob
	}
	jobText := strings.TrimSpace(frag)

	// Consume the fragment before anything else so the page's later
	// in-app navigation cannot re-trigger this job.
	if err := chromedp.Run(ctx, chromedp.Evaluate(
		`window.history.replaceState(null, "", " ")`, nil)); err != nil {
		return fmt.Errorf("failed to clear fragment: %w", err)
	}

	sel := a.cfg.Selectors

	err := poll(ctx, a.cfg.PollInterval, a.cfg.ReadyTimeout, func(ctx context.Context) (bool, error) {
		return a.allPresent(ctx, sel.Input, sel.Send)
	})
	if errors.Is(err, errPollTimeout) {
		return ErrPageNotReady
	}
	if err != nil {
		return fmt.Errorf("waiting for chat input: %w", err)
	}

	// Submitting: write the job, then fire a synthetic input event;
	// the page reacts to the event, not the DOM mutation.
	a.setState(StateSubmitting)
	inject := fmt.Sprintf(`(function() {
		var el = document.querySelector(%s);
		el.innerText = %s;
		el.dispatchEvent(new Event("input", { bubbles: true }));
	})()`, jsString(sel.Input), jsString(jobText))
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(inject, nil),
		chromedp.Sleep(a.cfg.SettleDelay),
		chromedp.Click(sel.Send, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("failed to submit job: %w", err)
	}

	// Awaiting: generation finished AND a table exists. Checking both
	// avoids scraping a stale table from an earlier conversation turn.
	a.setState(StateAwaitingResponse)
	done := fmt.Sprintf(`document.querySelector(%s) === null && document.querySelectorAll(%s).length > 0`,
		jsString(sel.Generating), jsString(sel.Table))
	err = poll(ctx, a.cfg.ResponsePoll, a.cfg.ResponseTimeout, func(ctx context.Context) (bool, error) {
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(done, &ok)); err != nil {
			return false, err
		}
		return ok, nil
	})
	if errors.Is(err, errPollTimeout) {
		return ErrGenerationTimeout
	}
	if err != nil {
		return fmt.Errorf("waiting for response: %w", err)
	}

	a.setState(StateScraping)
	var tableHTML string
	scrape := fmt.Sprintf(`(function() {
		var tables = document.querySelectorAll(%s);
		return tables[tables.length - 1].outerHTML;
	})()`, jsString(sel.Table))
	if err := chromedp.Run(ctx,
		chromedp.Sleep(a.cfg.ScrapeSettle),
		chromedp.Evaluate(scrape, &tableHTML),
	); err != nil {
		return fmt.Errorf("failed to scrape table: %w", err)
	}
	rows, err := parseTable(tableHTML)
	if err != nil {
		return err
	}

	a.setState(StateDelivering)
	if err := a.deliverer.Deliver(ctx, rows); err != nil {
		// No automatic retry: the source rows are already marked
		// Processed on the hosted side, so repeating the POST is the
		// operator's call, not ours.
		return fmt.Errorf("delivery failed: %w", err)
	}

	log.Printf("Agent: delivered %d rows", len(rows))
	return nil
}

func (a *Agent) allPresent(ctx context.Context, selectors ...string) (bool, error) {
	for _, sel := range selectors {
		var ok bool
		expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(sel))
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// jsString embeds a Go string in a JavaScript expression
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
