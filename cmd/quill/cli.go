package main

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/quill/internal/content"
	"github.com/hpungsan/quill/internal/errors"
	"github.com/hpungsan/quill/internal/mcp"
	"github.com/hpungsan/quill/internal/ops"
	"github.com/hpungsan/quill/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "quill",
		Usage:   "Creator dashboard for products, brain dumps and projects",
		Version: Version,
		Commands: []*cli.Command{
			productsCmd(e),
			dumpsCmd(e),
			projectsCmd(e),
			cacheCmd(e),
			loginCmd(e),
			logoutCmd(e),
			statusCmd(e),
			serveCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// cacheCmd creates the cache command group.
func cacheCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the local cache",
		Subcommands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Delete cached lists and records",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "Only keys starting with this (e.g. products:)"},
					&cli.StringFlag{Name: "older-than", Usage: "Only entries written more than this long ago (e.g. 7d, 12h)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeInput{Prefix: c.String("prefix")}
					if olderThan := c.String("older-than"); olderThan != "" {
						d, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.OlderThan = &d
					}

					output, err := ops.PurgeCache(c.Context, e.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// loginCmd creates the login command.
func loginCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and remember the session (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Account email"},
		},
		Action: func(c *cli.Context) error {
			password, err := readInput(c, "")
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			session, err := e.client.SignIn(c.Context, c.String("email"), password)
			if err != nil {
				return outputError(err)
			}
			if err := e.saveSession(c.Context, session); err != nil {
				return outputError(err)
			}
			// Cached rows belong to whoever was signed in before
			e.clearCaches(c.Context)

			return outputJSON(c, map[string]any{
				"user_id":    session.User.ID,
				"email":      session.User.Email,
				"expires_at": time.Unix(session.ExpiresAt, 0).UTC(),
			})
		},
	}
}

// logoutCmd creates the logout command.
func logoutCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: func(c *cli.Context) error {
			e.clearCaches(c.Context)
			if err := e.clearSession(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(c, map[string]any{"signed_out": true})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show configuration, session and backend reachability",
		Action: func(c *cli.Context) error {
			out := map[string]any{
				"version":       Version,
				"backend_url":   e.cfg.BackendURL,
				"cache_backend": e.cfg.CacheBackend,
				"user_id":       e.userID(),
				"signed_in":     e.client.Session() != nil,
			}

			if profile, err := e.profiles.Current(c.Context); err == nil {
				out["greeting"] = "Hi, " + profile.Name()
			} else {
				out["error"] = errors.Message(err)
				if r := errors.Remediation(err); r != "" {
					out["remediation"] = r
				}
			}
			out["connected"] = e.client.Connectivity().Connected()

			if h, err := e.handoffs.Peek(c.Context, e.userID()); err == nil && h != nil {
				out["pending_handoff"] = h.Path
			}
			return outputJSON(c, out)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(e.webDeps(), Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			if r := e.refresher(); r != nil {
				r.Start(c.Context)
				defer r.Stop()
			}
			return web.Run(c.Context, srv, e.log)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server over stdio",
		Action: func(_ *cli.Context) error {
			return mcp.Run(e.mcpDeps(), e.cfg, Version)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var qErr *errors.QuillError
	if !stderrors.As(err, &qErr) {
		return cli.Exit(err.Error(), 1)
	}
	msg := fmt.Sprintf("[%s] %s", qErr.Code, qErr.Message)
	if r := errors.Remediation(err); r != "" {
		msg += "\n" + r
	}
	return cli.Exit(msg, 1)
}

// readInput returns the flag's value when set, otherwise whatever is piped in.
// An interactive stdin yields "".
func readInput(c *cli.Context, flag string) (string, error) {
	if flag != "" && c.IsSet(flag) {
		return c.String(flag), nil
	}
	if f, ok := c.App.Reader.(*os.File); ok && !hasData(f) {
		return "", nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// hasData returns true if f is piped data (not a terminal).
func hasData(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// confirm asks before a destructive action unless --yes was given.
func confirm(c *cli.Context, prompt string) bool {
	if c.Bool("yes") {
		return true
	}
	fmt.Fprintf(c.App.ErrWriter, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// parseMetadata decodes a JSON object flag value.
func parseMetadata(s string) (content.Metadata, error) {
	var meta content.Metadata
	if err := json.Unmarshal([]byte(s), &meta); err != nil || meta == nil {
		return nil, errors.NewInvalidRequest("metadata must be a JSON object")
	}
	return meta, nil
}

// optional returns a pointer to the flag's value when it was given.
func optional(c *cli.Context, flag string) *string {
	if !c.IsSet(flag) {
		return nil
	}
	v := c.String(flag)
	return &v
}

// parseDuration parses "7d" as days and anything else with time.ParseDuration.
func parseDuration(s string) (time.Duration, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s (use e.g. 7d or 12h)", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative")
	}
	return d, nil
}
