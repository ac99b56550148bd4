// Package navigate opens notification links outside the terminal.
package navigate

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
)

// Opener opens a URL, typically in a browser.
type Opener interface {
	Open(ctx context.Context, target string) error
}

// SystemOpener hands URLs to the desktop's default handler.
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, target string) error {
	if err := validate(target); err != nil {
		return err
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Recorder remembers opened URLs instead of opening them.
type Recorder struct {
	mu     sync.Mutex
	opened []string
}

func (r *Recorder) Open(_ context.Context, target string) error {
	if err := validate(target); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, target)
	return nil
}

// Opened returns the URLs opened so far.
func (r *Recorder) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

// validate accepts absolute http(s) URLs only; click links come from
// notification payloads and are never passed to a shell otherwise.
func validate(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("parsing link %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: unsupported scheme", target)
	}
	if u.Host == "" {
		return fmt.Errorf("refusing to open %q: missing host", target)
	}
	return nil
}
