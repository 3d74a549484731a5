package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"pkt.systems/langpad/httpapi"
	"pkt.systems/langpad/internal/appconfig"
	"pkt.systems/langpad/internal/share"
	"pkt.systems/langpad/schema"
)

func newShareCmd() *cobra.Command {
	var cfgPath string
	var grammarPath string
	var samplePath string
	var baseURL string
	var decode string
	var qr bool
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print a share link for a grammar and sample, or decode one",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if decode != "" {
				snapshot, err := share.ParseLink(decode)
				if err != nil {
					return err
				}
				return printSnapshot(out, snapshot)
			}
			if grammarPath == "" {
				return errors.New("--grammar is required")
			}
			snapshot := schema.StateSnapshot{}
			var err error
			if snapshot.Grammar, err = readText(grammarPath); err != nil {
				return err
			}
			if samplePath != "" {
				if snapshot.Content, err = readText(samplePath); err != nil {
					return err
				}
			}
			if baseURL == "" {
				cfg, err := appconfig.Load(cfgPath)
				if err != nil {
					return err
				}
				baseURL = shareBase(cfg.HTTP)
			}
			link, err := share.Link(baseURL, snapshot)
			if err != nil {
				return err
			}
			return printLink(out, link, qr)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&grammarPath, "grammar", "g", "", "grammar file")
	cmd.Flags().StringVarP(&samplePath, "sample", "s", "", "sample program file")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "playground URL the link points at (defaults to http.base_url)")
	cmd.Flags().StringVar(&decode, "decode", "", "decode a share link and print its grammar and sample")
	cmd.Flags().BoolVar(&qr, "qr", false, "also print the link as a QR code")
	return cmd
}

// shareBase prefers the configured public URL and falls back to the local listen address.
func shareBase(cfg appconfig.HTTPConfig) string {
	if base := httpapi.ShareBaseURL(toHTTPConfig(cfg)); base != "" {
		return base
	}
	addr := strings.TrimSpace(cfg.Addr)
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func printLink(w io.Writer, link string, qr bool) error {
	if _, err := fmt.Fprintln(w, link); err != nil {
		return err
	}
	if qr {
		qrterminal.GenerateHalfBlock(link, qrterminal.L, w)
	}
	return nil
}

func printSnapshot(w io.Writer, snapshot schema.StateSnapshot) error {
	_, err := fmt.Fprintf(w, "# grammar\n%s\n# sample\n%s\n", strings.TrimRight(snapshot.Grammar, "\n"), strings.TrimRight(snapshot.Content, "\n"))
	return err
}
