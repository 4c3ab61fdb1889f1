package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/markspan/internal/cachemanager"
	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/log"
	"github.com/zjrosen/markspan/internal/pipeline"
	"github.com/zjrosen/markspan/internal/styles"
	"github.com/zjrosen/markspan/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the outputs whenever the input changes",
	Long: `Build the outputs once, then rebuild them every time the input document
is saved. Bursts of writes are coalesced using watch.debounce.

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("html", "", "HTML output file")
	watchCmd.Flags().String("tokens", "", "token stream output file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if html, _ := cmd.Flags().GetString("html"); html != "" {
		cfg.Output.HTML = html
	}
	if tokens, _ := cmd.Flags().GetString("tokens"); tokens != "" {
		cfg.Output.Tokens = tokens
	}

	p, err := newPipeline(cfg, provider.Tracer())
	if err != nil {
		return err
	}

	wc := watcher.DefaultConfig(cfg.Input)
	if cfg.Watch.Debounce > 0 {
		wc.DebounceDur = cfg.Watch.Debounce
	}
	w, err := watcher.New(wc)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, styles.MutedStyle.Render("watching "+cfg.Input+" (Ctrl+C to stop)"))
	return watchLoop(cmd.Context(), cfg, p, onChange, out)
}

// watchLoop builds once, then again on every change signal, until ctx is
// done. Failed builds are reported and the loop keeps going.
func watchLoop(ctx context.Context, c config.Config, p *pipeline.Pipeline, onChange <-chan struct{}, out io.Writer) error {
	last := rebuild(ctx, c, p, out, "")
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-onChange:
			if !ok {
				return nil
			}
			last = rebuild(ctx, c, p, out, last)
		}
	}
}

// rebuild runs one build and returns the cache key of the document now on
// disk. The result cached for prev is evicted once the document has changed.
func rebuild(ctx context.Context, c config.Config, p *pipeline.Pipeline, out io.Writer, prev cachemanager.Key) cachemanager.Key {
	start := time.Now()
	res, err := build(ctx, c, p, out)
	if err != nil {
		log.ErrorErr(log.CatWatcher, "rebuild failed", err, "input", c.Input)
		_, _ = fmt.Fprintln(out, styles.ErrorStyle.Render("✗")+" "+err.Error())
		return prev
	}
	if prev != res.Key {
		p.Forget(ctx, prev)
	}
	log.Debug(log.CatWatcher, "rebuilt outputs", "input", c.Input, "took", time.Since(start))
	return res.Key
}

// build runs one full read, process and write cycle.
func build(ctx context.Context, c config.Config, p *pipeline.Pipeline, out io.Writer) (*pipeline.Result, error) {
	res, err := processInput(ctx, p, c.Input)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeOutputs(res, c.Output)
	if err != nil {
		return nil, err
	}
	if err := writeOutputs(c.Output, encoded); err != nil {
		return nil, err
	}
	printSummary(out, c, res)
	return res, nil
}
