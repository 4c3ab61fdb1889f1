package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/markspan/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the rewritten document in the terminal",
	Long: `Render the input document to the terminal. Annotation spans are shown
in bold with an @ prefix and math spans as inline code.

Examples:
  markspan preview
  markspan preview --style dracula --width 100
  markspan preview --markdown    # print the preview Markdown unstyled`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("style", "", "glamour style (default: preview.style)")
	previewCmd.Flags().Int("width", -1, "word wrap column, 0 disables wrapping (default: preview.width)")
	previewCmd.Flags().Bool("markdown", false, "print the preview Markdown instead of styled output")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, _ []string) error {
	style := cfg.Preview.Style
	if s, _ := cmd.Flags().GetString("style"); s != "" {
		style = s
	}
	width := cfg.Preview.Width
	if wd, _ := cmd.Flags().GetInt("width"); wd >= 0 {
		width = wd
	}

	p, err := newPipeline(cfg, provider.Tracer())
	if err != nil {
		return err
	}
	res, err := processInput(cmd.Context(), p, cfg.Input)
	if err != nil {
		return err
	}

	r, err := preview.New(style, width)
	if err != nil {
		return err
	}

	var out string
	if md, _ := cmd.Flags().GetBool("markdown"); md {
		out = r.Markdown(res.Tokens)
	} else if out, err = r.Render(res.Tokens); err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}
