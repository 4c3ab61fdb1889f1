package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/markspan/internal/config"
	"github.com/zjrosen/markspan/internal/document"
	"github.com/zjrosen/markspan/internal/drift"
	"github.com/zjrosen/markspan/internal/styles"
)

// errDrift is returned when an output file differs from a fresh build.
var errDrift = errors.New("outputs are out of date; run markspan to rebuild them")

var (
	checkContext int
	checkQuiet   bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the outputs match the input",
	Long: `Build the outputs in memory and compare them with the files on disk.
Nothing is written. Exits non-zero when either output is missing or differs,
which makes it suitable for CI and pre-commit hooks.

Examples:
  markspan check
  markspan check --context 1
  markspan check --quiet`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&checkContext, "context", "C", 3, "unchanged lines shown around each difference")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "only report which files differ")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	p, err := newPipeline(cfg, provider.Tracer())
	if err != nil {
		return err
	}
	res, err := processInput(cmd.Context(), p, cfg.Input)
	if err != nil {
		return err
	}
	out, err := encodeOutputs(res, cfg.Output)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	drifted, err := checkOutputs(w, cfg.Output, out, checkContext, checkQuiet)
	if err != nil {
		return err
	}
	if drifted {
		return errDrift
	}
	_, _ = fmt.Fprintln(w, styles.SuccessStyle.Render("✓")+" outputs are up to date")
	return nil
}

// checkOutputs compares both outputs with the files on disk and prints the
// differences. It reports whether anything differs.
func checkOutputs(w io.Writer, oc config.OutputConfig, out outputs, context int, quiet bool) (bool, error) {
	files := []struct {
		path string
		want []byte
	}{
		{oc.HTML, out.html},
		{oc.Tokens, out.tokens},
	}

	drifted := false
	for _, f := range files {
		missing := false
		existing, err := document.Read(f.path)
		if errors.Is(err, document.ErrNotFound) {
			missing = true
		} else if err != nil {
			return false, fmt.Errorf("reading %s: %w", f.path, err)
		}

		lines := drift.Compare(string(existing), string(f.want))
		if !missing && !drift.Changed(lines) {
			continue
		}
		drifted = true

		status := "differs"
		if missing {
			status = "missing"
		}
		_, _ = fmt.Fprintln(w, styles.ErrorStyle.Render("✗")+" "+styles.TitleStyle.Render(f.path)+" "+styles.MutedStyle.Render(status))
		if quiet || missing {
			continue
		}
		printHunks(w, drift.Hunks(lines, context))
	}
	return drifted, nil
}

func printHunks(w io.Writer, hunks []drift.Hunk) {
	for _, h := range hunks {
		_, _ = fmt.Fprintln(w, styles.MutedStyle.Render(fmt.Sprintf("@@ line %d @@", h.Start+1)))
		for _, l := range h.Lines {
			switch l.Type {
			case drift.LineAddition:
				_, _ = fmt.Fprintln(w, styles.DiffInsertStyle.Render("+"+l.Text))
			case drift.LineDeletion:
				_, _ = fmt.Fprintln(w, styles.DiffDeleteStyle.Render("-"+l.Text))
			default:
				_, _ = fmt.Fprintln(w, " "+strings.TrimRight(l.Text, " "))
			}
		}
	}
}
