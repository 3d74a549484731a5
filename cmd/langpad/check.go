package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/langpad/internal/format"
	"pkt.systems/langpad/internal/grammar"
	"pkt.systems/langpad/schema"
)

var errCheckFailed = errors.New("check failed")

func newCheckCmd() *cobra.Command {
	var samplePath string
	cmd := &cobra.Command{
		Use:   "check <grammar.ebnf>",
		Short: "Report grammar diagnostics, optionally parsing a sample program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grammarSrc, err := readText(args[0])
			if err != nil {
				return err
			}
			sample := ""
			if samplePath != "" {
				if sample, err = readText(samplePath); err != nil {
					return err
				}
			}
			return runCheck(cmd.OutOrStdout(), args[0], grammarSrc, samplePath, sample)
		},
	}
	cmd.Flags().StringVarP(&samplePath, "sample", "s", "", "sample program to parse with the grammar")
	return cmd
}

func runCheck(w io.Writer, grammarPath, grammarSrc, samplePath, sample string) error {
	g, diags := grammar.Check(grammarSrc)
	printDiagnostics(w, grammarPath, diags)
	if g == nil {
		return fmt.Errorf("%w: %s", errCheckFailed, grammarPath)
	}
	if samplePath == "" {
		_, err := fmt.Fprintf(w, "%s: ok (%d productions, start %s)\n", grammarPath, len(g.Productions()), g.Start)
		return err
	}
	doc, sampleDiags := g.Parse(samplePath, sample)
	printDiagnostics(w, samplePath, sampleDiags)
	if hasErrors(sampleDiags) {
		return fmt.Errorf("%w: %s", errCheckFailed, samplePath)
	}
	view := format.NewPlainRenderer().RenderTree(doc, nil)
	for _, line := range view.Lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func printDiagnostics(w io.Writer, path string, diags []schema.Diagnostic) {
	for _, diag := range diags {
		_, _ = fmt.Fprintf(w, "%s:%s\n", path, format.FormatDiagnostic(diag))
	}
}

func hasErrors(diags []schema.Diagnostic) bool {
	return schema.Notification{Diagnostics: diags}.HasErrors()
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return schema.NormalizeText(string(data)), nil
}
