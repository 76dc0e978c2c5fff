package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/quill/internal/config"
	"github.com/hpungsan/quill/internal/db"
	"github.com/hpungsan/quill/internal/logger"
	"github.com/hpungsan/quill/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"products": true, "dumps": true, "projects": true,
	"cache": true, "login": true, "logout": true, "status": true,
	"serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
    ___        _ _ _
   / _ \ _   _(_) | |
  | | | | | | | | | |
  | |_| | |_| | | | |
   \__\_\\__,_|_|_|_|

  Creator dashboard for products, brain dumps and projects

  Usage: quill <command> [options]
         quill serve
         quill --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any setup
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fail("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".quill")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = baseDir
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if err := config.LoadEnv(cfg, cwd); err != nil {
		fail("failed to load .env: %v", err)
	}

	// stdout carries MCP frames and CLI JSON, so logs go to stderr
	log, logCloser, err := logger.New().Level(cfg.LogLevel).Console(isTerminal()).Make()
	if err != nil {
		fail("failed to create logger: %v", err)
	}
	defer logCloser.Close()

	database, err := db.Init(baseDir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	e, err := newEnv(database, cfg, log)
	if err != nil {
		fail("%v", err)
	}
	defer e.Close()

	if isCLIMode() {
		app := newCLIApp(e)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'quill --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(e.mcpDeps(), cfg, Version); err != nil {
		fail("%v", err)
	}
}
