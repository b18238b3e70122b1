package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/jsulmar/yarm/internal/audio"
	"github.com/jsulmar/yarm/internal/config"
	"github.com/jsulmar/yarm/internal/media"
	"github.com/jsulmar/yarm/internal/player"
	"github.com/jsulmar/yarm/internal/recording"
	"github.com/jsulmar/yarm/internal/service"
	"github.com/jsulmar/yarm/internal/ui"
	"github.com/jsulmar/yarm/internal/upload"
	"github.com/spf13/cobra"
)

const sessionHelp = `Commands:
  enable   open the input device
  record   start a new recording
  stop     stop the current recording
  save     write the recording to the output directory
  upload   send the recording to the upload endpoint
  status   show the current state
  quit     leave the session`

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start an interactive recording session",
	Long: `Start an interactive recorder. Type enable, record, stop, save or
upload; the available actions are printed after every change.

` + sessionHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
			cfg.Upload.Endpoint = endpoint
		}
		if source, _ := cmd.Flags().GetString("source"); source != "" {
			cfg.Capture.Source = source
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSession(ctx, cfg, os.Stdin, os.Stdout)
	},
}

func init() {
	sessionCmd.Flags().String("endpoint", "", "upload endpoint (overrides config)")
	sessionCmd.Flags().StringP("source", "s", "", "capture source (overrides config)")
}

func runSession(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	kind, err := media.ParseKind(cfg.Capture.Kind)
	if err != nil {
		return err
	}

	backend, err := audio.NewBackend(cfg.Capture.Backend)
	if err != nil {
		return err
	}
	slog.Debug("Using audio backend", "type", backend.Type(), "source", cfg.Capture.Source)

	supported, err := audio.ProbeEncoders()
	if err != nil {
		slog.Warn("Could not probe encoders", "error", err)
	}
	desc := negotiateDescriptor(cfg, supported)

	router := &lineRouter{out: out}
	var prompter audio.Prompter
	if cfg.Capture.Prompt {
		prompter = router
	}

	factory, err := player.Resolve(cfg.Player.Kind)
	if err != nil {
		return err
	}
	p, err := player.New(out, factory)
	if err != nil {
		return err
	}

	uploader := upload.NewClient(cfg.Upload.Timeout,
		upload.WithCompletionHook(upload.CommandHook(cfg.Upload.CompletedCommand)))

	// The notifier runs after the widget exists; acquisition starts on enable.
	var widget *service.Widget
	source := media.NewSource(audio.NewPlatform(backend, cfg.Capture.Source, prompter),
		media.WithTimeout(cfg.Capture.PermissionTimeout),
		media.WithNotifier(func(err error) { widget.AcquisitionFailed(err) }),
	)
	widget = service.New(service.Options{
		Descriptor: desc,
		Kind:       kind,
		Endpoint:   cfg.Upload.Endpoint,
		OutputDir:  cfg.Output.Directory,
		Autoplay:   cfg.Player.Autoplay,
		OnNotice:   func(msg string) { fmt.Fprintf(out, "⚠️  %s\n", msg) },
	},
		source,
		recording.NewFileStore(filepath.Join(os.TempDir(), "yarm")),
		ui.NewMachine(ui.NewTerminal(out)),
		p,
		uploader,
	)

	fmt.Fprintf(out, "🎙️  yarm session (%s, %s)\n", desc.MimeType, cfg.Upload.Endpoint)
	fmt.Fprintln(out, sessionHelp)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			slog.Info("Session interrupted", "state", widget.State())
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if router.route(line) || line == "" {
				continue
			}
			switch line {
			case "quit", "exit":
				return nil
			case "help":
				fmt.Fprintln(out, sessionHelp)
				continue
			case "status":
				printStatus(out, widget)
				continue
			}
			if err := widget.Perform(ctx, line); err != nil {
				reportActionError(out, err)
			}
		}
	}
}

// negotiateDescriptor picks the first configured encoding the encoder
// supports, falling back to the configured media type.
func negotiateDescriptor(cfg *config.Config, supported func(string) bool) recording.Descriptor {
	desc := recording.Descriptor{
		MimeType:      cfg.Media.MimeType,
		FileExtension: cfg.Media.FileExtension,
	}
	if supported == nil {
		return desc
	}
	mimeType, err := audio.Negotiate(cfg.Encodings, supported, cfg.Media.MimeType)
	if err != nil {
		return desc
	}
	desc.MimeType = mimeType
	if !sameContainer(mimeType, cfg.Media.MimeType) {
		if ext, err := audio.Extension(mimeType); err == nil {
			desc.FileExtension = ext
		}
	}
	return desc
}

func sameContainer(a, b string) bool {
	base := func(s string) string {
		s, _, _ = strings.Cut(s, ";")
		return strings.ToLower(strings.TrimSpace(s))
	}
	return base(a) == base(b)
}

func printStatus(out io.Writer, widget *service.Widget) {
	view := widget.View()
	fmt.Fprintf(out, "State: %s\n", view.State)
	if a, ok := widget.Artifact(); ok {
		fmt.Fprintf(out, "Recording: %s (%s)\n", a.Name, formatSize(len(a.Blob)))
	}
	if msg := widget.GetLastError(); msg != "" {
		fmt.Fprintf(out, "Last error: %s\n", msg)
	}
}

func reportActionError(out io.Writer, err error) {
	switch {
	case service.IsRejected(err):
		fmt.Fprintf(out, "❌ %v\n", err)
	case errors.Is(err, recording.ErrNotFinalized):
		fmt.Fprintln(out, "⏳ Recording is still being finalized, try again")
	default:
		fmt.Fprintf(out, "❌ Error: %v\n", err)
	}
}

func formatSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := int64(n) / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// lineRouter hands the next input line to a pending confirmation, if any.
type lineRouter struct {
	mu      sync.Mutex
	pending chan string
	out     io.Writer
}

func (r *lineRouter) Confirm(ctx context.Context, question string) (bool, error) {
	answer := make(chan string, 1)
	r.mu.Lock()
	r.pending = answer
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		if r.pending == answer {
			r.pending = nil
		}
		r.mu.Unlock()
	}()

	fmt.Fprintf(r.out, "%s [y/N] ", question)
	select {
	case a := <-answer:
		a = strings.ToLower(a)
		return a == "y" || a == "yes", nil
	case <-ctx.Done():
		fmt.Fprintln(r.out)
		return false, ctx.Err()
	}
}

func (r *lineRouter) route(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return false
	}
	r.pending <- line
	r.pending = nil
	return true
}
