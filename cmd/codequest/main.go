package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/codequest/internal/api"
	"github.com/felixgeelhaar/codequest/internal/config"
	"github.com/felixgeelhaar/codequest/internal/grader"
	"github.com/felixgeelhaar/codequest/internal/logging"
	"github.com/felixgeelhaar/codequest/internal/progress"
	"github.com/felixgeelhaar/codequest/internal/storage/sqlite"
	"github.com/felixgeelhaar/codequest/internal/task"
)

// Version is set at build time via ldflags
var Version = "dev"

// localUser owns progress recorded by the CLI
const localUser = "local"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "grade":
		err = cmdGrade(os.Args[2:])
	case "tasks":
		err = cmdTasks(os.Args[2:])
	case "progress":
		err = cmdProgress()
	case "status":
		err = cmdStatus()
	case "token":
		err = cmdToken(os.Args[2:])
	case "hash-passphrase":
		err = cmdHashPassphrase()
	case "mcp":
		err = cmdMCP()
	case "worker":
		err = cmdWorker()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("codequest %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`codequest - grade coding challenges locally or through codequestd

Usage:
  codequest <command> [arguments]

Challenge Commands:
  tasks                      List challenges
  tasks show <id>            Show a challenge
  tasks stats                Summarize the catalog
  tasks validate <dir>       Check a task pack directory
  grade <id> <file>          Grade a solution file and record progress
  progress                   Show local progress

Server Commands:
  status                     Check a running codequestd
  token <user> [-admin]      Issue a bearer token with the configured secret
  hash-passphrase            Hash an admin passphrase read from stdin
  worker                     Run an async grading worker (RabbitMQ)

Integration Commands:
  mcp                        Start MCP server on stdio

Other:
  help                       Show this help message
  version                    Show version information

Examples:
  codequest tasks -difficulty easy
  codequest grade 2 sum.js
  codequest grade -lang python 5 fib.py
  codequest token alice`)
}

// local is the in-process stack used by CLI commands
type local struct {
	cfg      *config.Config
	logger   *zap.Logger
	catalog  *task.Catalog
	grader   *grader.Service
	db       *sqlite.DB
	progress *progress.Service
}

// openLocal loads configuration and the local stores. withStore opens the
// SQLite database for progress.
func openLocal(withStore bool) (*local, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if level == "" || level == "info" {
		level = "warn"
	}
	logger, err := logging.New(logging.Config{Level: level, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	catalog, err := api.LoadCatalog(cfg.Tasks, logger)
	if err != nil {
		return nil, err
	}

	l := &local{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog,
		grader:  api.NewGrader(cfg.Grader, logger),
	}
	if !withStore {
		return l, nil
	}

	l.db, err = sqlite.Open(cfg.Storage.SQLitePath, logger.Named("sqlite"))
	if err != nil {
		return nil, err
	}
	if err := l.db.Migrate(context.Background()); err != nil {
		l.db.Close()
		return nil, err
	}
	l.progress = progress.NewService(sqlite.NewProgressStore(l.db), progress.WithLogger(logger))
	return l, nil
}

func (l *local) Close() {
	if l.db != nil {
		_ = l.db.Close()
	}
	_ = l.logger.Sync()
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
