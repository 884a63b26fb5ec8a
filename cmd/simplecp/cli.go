package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/app"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "simplecp",
		Usage:   "Clipboard history and snippet manager",
		Version: Version,
		Commands: []*cli.Command{
			daemonCmd(a),
			historyCmd(a),
			snippetCmd(a),
			folderCmd(a),
			exportCmd(a),
			importCmd(a),
			backendCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// daemonCmd creates the daemon command.
func daemonCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Run the clipboard watcher and backend supervisor until interrupted",
		Action: func(_ *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.StartDaemon(ctx)
			<-ctx.Done()
			a.Shutdown()
			return nil
		},
	}
}

// historyCmd creates the history command group.
func historyCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect and manage clipboard history",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List history entries, most recent first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum entries to return"},
				},
				Action: func(c *cli.Context) error {
					entries := a.History.Entries()
					if limit := c.Int("limit"); limit > 0 && limit < len(entries) {
						entries = entries[:limit]
					}
					return outputJSON(map[string]any{
						"entries": entries,
						"total":   a.History.Size(),
					})
				},
			},
			{
				Name:      "search",
				Usage:     "Search history by substring",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("query is required"))
					}
					matches := a.History.Search(c.Args().First())
					return outputJSON(map[string]any{
						"entries": matches,
						"matched": len(matches),
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Capture text into history (argument or piped stdin)",
				ArgsUsage: "[text]",
				Action: func(c *cli.Context) error {
					text := c.Args().First()
					if text == "" && stdinHasData() {
						var err error
						text, err = readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					entry, err := a.Capture(text)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(entry)
				},
			},
			{
				Name:      "copy",
				Usage:     "Place a history entry back on the clipboard",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("entry id is required"))
					}
					if err := a.CopyEntry(c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"copied": c.Args().First()})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a single history entry",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("entry id is required"))
					}
					if err := a.History.Remove(c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"removed": c.Args().First()})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove every history entry",
				Action: func(_ *cli.Context) error {
					if err := a.History.Clear(); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"cleared": true})
				},
			},
		},
	}
}

// snippetCmd creates the snippet command group.
func snippetCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "snippet",
		Usage: "Manage saved snippets",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a snippet (content from argument or piped stdin)",
				ArgsUsage: "[content]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Snippet name (defaults to a name derived from content)"},
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id to file under"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
				},
				Action: func(c *cli.Context) error {
					content := c.Args().First()
					if content == "" && stdinHasData() {
						var err error
						content, err = readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					if content == "" {
						return outputError(errors.NewValidation("content is required"))
					}
					name := c.String("name")
					if name == "" {
						name = clip.SuggestName(content)
					}
					snippet, err := a.CreateSnippet(name, content, c.String("folder"), parseTags(c.String("tags")))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(snippet)
				},
			},
			{
				Name:      "save",
				Usage:     "Save a history entry as a snippet",
				ArgsUsage: "<entry-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id to file under"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("entry id is required"))
					}
					snippet, err := a.SaveFromHistory(c.Args().First(), c.String("folder"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(snippet)
				},
			},
			{
				Name:  "list",
				Usage: "List snippets, optionally filtered by folder",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id, or 'uncategorized'"},
				},
				Action: func(c *cli.Context) error {
					var snippets []clip.Snippet
					switch folder := c.String("folder"); folder {
					case "":
						snippets = a.Snippets.All()
					case "uncategorized":
						snippets = a.Snippets.ListUncategorized(a.Folders.Exists)
					default:
						if !a.Folders.Exists(folder) {
							return outputError(errors.NewNotFound("folder", folder))
						}
						snippets = a.Snippets.ListByFolder(folder)
					}
					if snippets == nil {
						snippets = []clip.Snippet{}
					}
					return outputJSON(map[string]any{
						"snippets": snippets,
						"total":    len(snippets),
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Show one snippet",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("snippet id is required"))
					}
					snippet, err := a.Snippets.Get(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(snippet)
				},
			},
			{
				Name:      "update",
				Usage:     "Update a snippet's name, content, folder, or tags",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
					&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "New folder id (empty string uncategorizes)"},
					&cli.StringFlag{Name: "tags", Usage: "New comma-separated tags"},
					&cli.BoolFlag{Name: "favorite", Usage: "Mark or unmark as favorite"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("snippet id is required"))
					}
					snippet, err := a.Snippets.Get(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					if name := c.String("name"); name != "" {
						snippet.Name = name
					}
					if c.IsSet("folder") {
						snippet.FolderID = c.String("folder")
					}
					if c.IsSet("tags") {
						snippet.Tags = parseTags(c.String("tags"))
					}
					if c.IsSet("favorite") {
						snippet.IsFavorite = c.Bool("favorite")
					}
					if stdinHasData() {
						content, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						if content != "" {
							snippet.Content = content
						}
					}
					updated, err := a.UpdateSnippet(snippet)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(updated)
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a snippet",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("snippet id is required"))
					}
					snippet, err := a.DeleteSnippet(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"deleted": snippet.ID, "name": snippet.Name})
				},
			},
			{
				Name:      "copy",
				Usage:     "Place a snippet's content on the clipboard",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("snippet id is required"))
					}
					if err := a.CopySnippet(c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"copied": c.Args().First()})
				},
			},
			{
				Name:      "search",
				Usage:     "Search snippets by name, content, or tag",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("query is required"))
					}
					matches := a.Snippets.Search(c.Args().First())
					if matches == nil {
						matches = []clip.Snippet{}
					}
					return outputJSON(map[string]any{
						"snippets": matches,
						"matched":  len(matches),
					})
				},
			},
		},
	}
}

// folderCmd creates the folder command group.
func folderCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "folder",
		Usage: "Manage snippet folders",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Create a folder",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "icon", Usage: "Display icon"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("folder name is required"))
					}
					folder, err := a.CreateFolder(c.Args().First(), c.String("icon"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(folder)
				},
			},
			{
				Name:  "ls",
				Usage: "List folders in display order",
				Action: func(_ *cli.Context) error {
					return outputJSON(map[string]any{"folders": a.Folders.All()})
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a folder",
				ArgsUsage: "<id> <new-name>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(errors.NewValidation("folder id and new name are required"))
					}
					if err := a.RenameFolder(c.Args().Get(0), c.Args().Get(1)); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"renamed": c.Args().Get(0), "name": c.Args().Get(1)})
				},
			},
			{
				Name:      "rm",
				Usage:     "Delete a folder and the snippets inside it",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("folder id is required"))
					}
					folder, removed, err := a.DeleteFolder(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{
						"deleted":          folder.Name,
						"snippets_removed": len(removed),
					})
				},
			},
			{
				Name:      "toggle",
				Usage:     "Toggle a folder's expansion state",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("folder id is required"))
					}
					if err := a.ToggleFolder(c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"toggled": c.Args().First()})
				},
			},
			{
				Name:  "sync",
				Usage: "Reconcile local folders against the backend",
				Action: func(c *cli.Context) error {
					if err := a.SyncFolders(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"folders": a.Folders.All()})
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export snippets and folders",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "Output format: json|html"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file path (default: stdout)"},
		},
		Action: func(c *cli.Context) error {
			var w io.Writer = os.Stdout
			if path := c.String("path"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				defer f.Close()
				w = f
			}

			var err error
			switch format := c.String("format"); format {
			case "json":
				err = a.ExportJSON(w)
			case "html":
				err = a.ExportHTML(w)
			default:
				err = errors.NewValidation(fmt.Sprintf("unknown format %q, expected json or html", format))
			}
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// importCmd creates the import command.
func importCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import snippets and folders from a JSON export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("path"))
			if err != nil {
				return outputError(errors.NewValidation(fmt.Sprintf("cannot open import file: %v", err)))
			}
			defer f.Close()

			stats, err := a.ImportJSON(f)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stats)
		},
	}
}

// backendCmd creates the backend command group.
func backendCmd(a *app.App) *cli.Command {
	return &cli.Command{
		Name:  "backend",
		Usage: "Control the Python sync backend",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show backend process state and probe its health endpoint",
				Action: func(c *cli.Context) error {
					status := a.Supervisor.Status()
					healthy := a.Client.Health(c.Context) == nil
					return outputJSON(map[string]any{
						"state":            status.State,
						"pid":              status.PID,
						"adopted":          status.Adopted,
						"restart_attempts": status.RestartAttempts,
						"last_error":       status.LastError,
						"healthy":          healthy,
					})
				},
			},
			{
				Name:  "start",
				Usage: "Start the backend if it is not running",
				Action: func(c *cli.Context) error {
					if err := a.Supervisor.Start(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(a.Supervisor.Status())
				},
			},
			{
				Name:  "stop",
				Usage: "Stop a backend this process started",
				Action: func(_ *cli.Context) error {
					a.Supervisor.Stop()
					return outputJSON(a.Supervisor.Status())
				},
			},
			{
				Name:  "restart",
				Usage: "Restart the backend, resetting the failure budget",
				Action: func(c *cli.Context) error {
					if err := a.Supervisor.Restart(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(a.Supervisor.Status())
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*errors.Error); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
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

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
