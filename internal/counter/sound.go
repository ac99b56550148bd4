package counter

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/nhle/notification-tray/internal/model"
)

// Player plays the audio cue for newly arrived notifications.
type Player interface {
	Play(ctx context.Context) error
}

// NewPlayer builds the player described by cfg.
func NewPlayer(cfg model.SoundConfig) Player {
	switch {
	case !cfg.Enabled:
		return NopPlayer{}
	case len(cfg.Command) > 0:
		return CommandPlayer{Argv: cfg.Command}
	default:
		return BellPlayer{Out: os.Stderr}
	}
}

// NopPlayer is silent.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context) error { return nil }

// BellPlayer rings the terminal bell.
type BellPlayer struct {
	Out io.Writer
}

func (b BellPlayer) Play(context.Context) error {
	_, err := io.WriteString(b.Out, "\a")
	return err
}

// CommandPlayer runs an external audio player.
type CommandPlayer struct {
	Argv []string
}

// playTimeout bounds how long an external player may run.
const playTimeout = 10 * time.Second

func (c CommandPlayer) Play(ctx context.Context) error {
	if len(c.Argv) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, playTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("running %s: %w: %s", c.Argv[0], err, out)
	}
	return nil
}
