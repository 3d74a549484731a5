package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"pkt.systems/langpad"
	"pkt.systems/langpad/core"
	"pkt.systems/langpad/internal/appconfig"
	"pkt.systems/langpad/internal/eventbus"
	"pkt.systems/langpad/internal/format"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	var grammarPath string
	var samplePath string
	var withHTTP bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a playground on local files and print its output on every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if grammarPath == "" || samplePath == "" {
				return errors.New("--grammar and --sample are required")
			}
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), cfg, watchFiles{grammar: grammarPath, sample: samplePath}, withHTTP)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&grammarPath, "grammar", "g", "", "grammar file")
	cmd.Flags().StringVarP(&samplePath, "sample", "s", "", "sample program file")
	cmd.Flags().BoolVar(&withHTTP, "http", false, "also serve the HTTP API")
	return cmd
}

type watchFiles struct {
	grammar string
	sample  string
}

func (f watchFiles) abs() (watchFiles, error) {
	g, err := filepath.Abs(f.grammar)
	if err != nil {
		return f, err
	}
	s, err := filepath.Abs(f.sample)
	if err != nil {
		return f, err
	}
	return watchFiles{grammar: g, sample: s}, nil
}

func runWatch(ctx context.Context, out io.Writer, cfg appconfig.Config, files watchFiles, withHTTP bool) error {
	logger := pslog.Ctx(ctx)
	files, err := files.abs()
	if err != nil {
		return err
	}
	grammarSrc, err := readText(files.grammar)
	if err != nil {
		return err
	}
	sample, err := readText(files.sample)
	if err != nil {
		return err
	}

	bus := eventbus.New(logger)
	opts := []langpad.ServerOption{langpad.WithEventBus(bus)}
	if withHTTP {
		opts = append(opts, langpad.WithHTTP())
	}
	server, err := langpad.New(toServerConfig(cfg), langpad.ServerDeps{
		ServiceDeps: core.ServiceDeps{Logger: logger},
	}, opts...)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(stopCtx); err != nil {
			logger.Warn("watch stop failed", "err", err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	for _, dir := range uniqueDirs(files.grammar, files.sample) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	service := server.Service()
	created, err := service.CreatePlayground(ctx, schema.CreatePlaygroundRequest{Grammar: grammarSrc, Content: sample})
	if err != nil {
		return err
	}
	id := created.Playground.ID
	events, unsubscribe := bus.Subscribe(id)
	defer unsubscribe()
	logger.Info("watch started", "playground", id, "grammar", files.grammar, "sample", files.sample)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(out, event)
			if event.Type == schema.UIEventClosed {
				return nil
			}
		case change, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !change.Has(fsnotify.Write) && !change.Has(fsnotify.Create) {
				continue
			}
			if err := applyChange(ctx, service, id, files, filepath.Clean(change.Name)); err != nil {
				logger.Warn("watch update failed", "path", change.Name, "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		}
	}
}

func applyChange(ctx context.Context, service core.Service, id schema.PlaygroundID, files watchFiles, path string) error {
	var update func(context.Context, schema.UpdateTextRequest) (schema.UpdateTextResponse, error)
	switch path {
	case files.grammar:
		update = service.UpdateDefinition
	case files.sample:
		update = service.UpdateSample
	default:
		return nil
	}
	text, err := readText(path)
	if err != nil {
		return err
	}
	_, err = update(ctx, schema.UpdateTextRequest{ID: id, Text: text})
	return err
}

func uniqueDirs(paths ...string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		dir := filepath.Dir(path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// printEvent renders the UI events a terminal can show. Markers, highlighting and layout
// events only matter to graphical editors, except sample markers which carry parse errors.
func printEvent(w io.Writer, event schema.UIEvent) {
	switch event.Type {
	case schema.UIEventError:
		_, _ = fmt.Fprintf(w, "error: %s: %s\n", event.ErrorName, event.ErrorDetails)
	case schema.UIEventDiagnostics:
		for _, diag := range event.Diagnostics {
			_, _ = fmt.Fprintf(w, "grammar:%s\n", format.FormatDiagnostic(diag))
		}
	case schema.UIEventLoading:
		if event.Loading {
			_, _ = fmt.Fprintln(w, "-- regenerating")
		}
	case schema.UIEventMarkers:
		if event.Editor != schema.EditorSample {
			return
		}
		for _, diag := range event.Diagnostics {
			_, _ = fmt.Fprintf(w, "sample:%s\n", format.FormatDiagnostic(diag))
		}
	case schema.UIEventTree:
		if event.Tree == nil {
			return
		}
		_, _ = fmt.Fprintf(w, "-- tree (%s)\n", event.Session)
		for _, line := range event.Tree.Lines {
			_, _ = fmt.Fprintln(w, line)
		}
	case schema.UIEventClosed:
		_, _ = fmt.Fprintln(w, "-- closed")
	}
}
