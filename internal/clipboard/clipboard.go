package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var (
	ErrToolNotFound  = errors.New("clipboard tool not found")
	ErrNothingToCopy = errors.New("nothing to copy")
)

type Command struct {
	Path string
	Args []string
}

// Copier pipes text into the platform clipboard tool.
type Copier struct {
	goos     string
	lookPath func(string) (string, error)
}

func New() *Copier {
	return &Copier{goos: runtime.GOOS, lookPath: exec.LookPath}
}

func (c *Copier) SelectCommand() (Command, error) {
	switch c.goos {
	case "darwin":
		path, err := c.lookPath("pbcopy")
		if err != nil {
			return Command{}, ErrToolNotFound
		}
		return Command{Path: path}, nil
	case "linux":
		if path, err := c.lookPath("wl-copy"); err == nil {
			return Command{Path: path}, nil
		}
		if path, err := c.lookPath("xclip"); err == nil {
			return Command{Path: path, Args: []string{"-selection", "clipboard"}}, nil
		}
		if path, err := c.lookPath("clip.exe"); err == nil {
			return Command{Path: path}, nil
		}
		return Command{}, ErrToolNotFound
	case "windows":
		path, err := c.lookPath("clip")
		if err != nil {
			return Command{}, ErrToolNotFound
		}
		return Command{Path: path}, nil
	default:
		return Command{}, ErrToolNotFound
	}
}

func (c *Copier) Copy(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	cmdDef, err := c.SelectCommand()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("clipboard command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
