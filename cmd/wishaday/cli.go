package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/lifecycle"
	"github.com/hpungsan/wishaday/internal/reclaim"
)

// maxMessageBytes caps a message read from stdin.
const maxMessageBytes = 64 * 1024

// maxAttachBytes caps the bytes read from an image file before the media
// store applies its own configured limit.
const maxAttachBytes = 32 * 1024 * 1024

// newCLIApp creates the CLI application with all commands.
func newCLIApp(manager *lifecycle.Manager, scheduler *reclaim.Scheduler) *cli.App {
	app := &cli.App{
		Name:    "wishaday",
		Usage:   "Self-destructing wishes",
		Version: Version,
		Commands: []*cli.Command{
			createCmd(manager),
			viewCmd(manager),
			deleteCmd(manager),
			statusCmd(manager),
			attachCmd(manager),
			imagesCmd(manager),
			detachCmd(manager),
			sweepCmd(scheduler),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// createCmd creates the create command.
func createCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a wish (message as argument or piped via stdin)",
		ArgsUsage: "[message]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Wish title"},
			&cli.StringFlag{Name: "theme", Value: lifecycle.DefaultTheme, Usage: "Presentation theme"},
			&cli.StringFlag{Name: "expires-in", Aliases: []string{"e"}, Usage: "Lifetime: minutes, a Go duration (90m, 2h) or days (7d)"},
			&cli.StringFlag{Name: "expires-at", Usage: "Absolute expiry (RFC 3339)"},
			&cli.IntFlag{Name: "max-views", Aliases: []string{"n"}, Usage: "Number of views before the wish self-destructs"},
			&cli.StringFlag{Name: "origin", Value: "cli", Usage: "Origin label counted against the daily quota"},
		},
		Action: func(c *cli.Context) error {
			message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if message == "" && stdinHasData() {
				text, err := readStdin(maxMessageBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				message = text
			}
			if message == "" {
				return outputError(errors.NewInvalidRequest("message is required (argument or stdin)"))
			}

			input := lifecycle.CreateInput{
				Message: message,
				Theme:   c.String("theme"),
				Origin:  c.String("origin"),
			}
			if title := c.String("title"); title != "" {
				input.Title = &title
			}
			if c.IsSet("max-views") {
				n := c.Int("max-views")
				input.MaxViews = &n
			}

			if c.IsSet("expires-in") && c.IsSet("expires-at") {
				return outputError(errors.NewInvalidRequest("use only one of --expires-in and --expires-at"))
			}
			if s := c.String("expires-at"); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					return outputError(errors.NewInvalidRequest("--expires-at must be RFC 3339, e.g. 2026-01-02T15:04:05Z"))
				}
				input.ExpiresAt = &t
			}
			if s := c.String("expires-in"); s != "" {
				d, err := parseLifetime(s)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				t := time.Now().Add(d)
				input.ExpiresAt = &t
			}

			output, err := manager.Create(c.Context, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// viewCmd creates the view command.
func viewCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "View a wish (counts as a view)",
		ArgsUsage: "<slug>",
		Action: func(c *cli.Context) error {
			slug, err := requireArg(c, "slug")
			if err != nil {
				return err
			}

			output, err := manager.View(c.Context, slug)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a wish",
		ArgsUsage: "<slug>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "requested-by", Value: "cli", Usage: "Actor recorded in logs"},
		},
		Action: func(c *cli.Context) error {
			slug, err := requireArg(c, "slug")
			if err != nil {
				return err
			}

			output, err := manager.Delete(c.Context, lifecycle.DeleteInput{
				Slug:        slug,
				RequestedBy: c.String("requested-by"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a wish's state without counting a view",
		ArgsUsage: "<slug>",
		Action: func(c *cli.Context) error {
			slug, err := requireArg(c, "slug")
			if err != nil {
				return err
			}

			output, err := manager.Status(c.Context, slug)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// attachCmd creates the attach command.
func attachCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "Attach an image file to a wish",
		ArgsUsage: "<slug> <file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: wishaday attach <slug> <file>"))
			}
			slug, path := c.Args().Get(0), c.Args().Get(1)

			data, err := readFile(path, maxAttachBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			output, err := manager.AttachImage(c.Context, lifecycle.AttachImageInput{
				Slug:     slug,
				Filename: filepath.Base(path),
				Data:     data,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// imagesCmd creates the images command.
func imagesCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "images",
		Usage:     "List a wish's images without counting a view",
		ArgsUsage: "<slug>",
		Action: func(c *cli.Context) error {
			slug, err := requireArg(c, "slug")
			if err != nil {
				return err
			}

			output, err := manager.ListImages(c.Context, slug)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// detachCmd creates the detach command.
func detachCmd(manager *lifecycle.Manager) *cli.Command {
	return &cli.Command{
		Name:      "detach",
		Usage:     "Remove an image from a wish",
		ArgsUsage: "<slug> <image-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return outputError(errors.NewInvalidRequest("usage: wishaday detach <slug> <image-id>"))
			}

			output, err := manager.DetachImage(c.Context, lifecycle.DetachImageInput{
				Slug:    c.Args().Get(0),
				ImageID: c.Args().Get(1),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(scheduler *reclaim.Scheduler) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run one reclamation sweep now",
		Action: func(c *cli.Context) error {
			output, err := scheduler.Sweep(c.Context)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// requireArg returns the first positional argument or an INVALID_REQUEST exit.
func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", outputError(errors.NewInvalidRequest(name + " is required"))
	}
	return c.Args().First(), nil
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. Internal error text is not shown.
func outputError(err error) error {
	if wErr, ok := errors.As(err); ok {
		message := wErr.Message
		if wErr.Code == errors.ErrInternal {
			message = "an internal error occurred"
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", wErr.Code, message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads stdin up to limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// readFile reads a file up to limit bytes.
func readFile(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", filepath.Base(path), err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", filepath.Base(path), limit)
	}
	return data, nil
}

// parseLifetime parses "30" (minutes), a Go duration ("90m", "2h") or "7d" (days).
func parseLifetime(s string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(s); err == nil {
		if minutes <= 0 {
			return 0, fmt.Errorf("lifetime must be positive")
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid lifetime: %s", s)
		}
		if days <= 0 {
			return 0, fmt.Errorf("lifetime must be positive")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime: %s (use minutes, 90m, 2h or 7d)", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("lifetime must be positive")
	}
	return d, nil
}
