// Package app wires the stores, sync client, backend supervisor, and
// clipboard watcher into one coordinator. All mutations follow the same
// pattern: apply locally first, then hand the backend call to a sync queue.
// Remote failures are logged and, apart from folder renames, never undo the
// local change.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/config"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/export"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/kv"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/store"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/supervisor"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/syncer"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/watcher"
)

// initialSyncWindow bounds how long the startup folder reconciliation keeps
// trying to reach a freshly spawned backend.
const initialSyncWindow = 30 * time.Second

// Options configures App construction.
type Options struct {
	// BaseDir holds the config file and database. Defaults to ~/.simplecp.
	BaseDir string

	// ProjectRoot anchors backend interpreter and script discovery.
	// Defaults to the current working directory.
	ProjectRoot string

	// Config overrides loading from BaseDir when set.
	Config *config.Config

	// Client overrides the default sync client. Tests inject one with an
	// accelerated retry policy here.
	Client *syncer.Client
}

// App is the coordinator owning every runtime component.
type App struct {
	Config     *config.Config
	History    *store.History
	Snippets   *store.Snippets
	Folders    *store.Folders
	Bus        *store.Bus
	Client     *syncer.Client
	Supervisor *supervisor.Supervisor
	Watcher    *watcher.Watcher

	kv           *kv.Store
	folderQueue  *syncer.Queue
	snippetQueue *syncer.Queue
}

// New builds a fully wired App. The database is opened and the stores are
// loaded; nothing starts running until StartDaemon.
func New(opts Options) (*App, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		dir, err := config.DefaultBaseDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}
	projectRoot := opts.ProjectRoot
	if projectRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			projectRoot = wd
		}
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(baseDir)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	kvStore, err := kv.Init(baseDir)
	if err != nil {
		return nil, err
	}

	bus := store.NewBus()
	client := opts.Client
	if client == nil {
		client = syncer.NewClient(cfg.BaseURL())
	}

	a := &App{
		Config:       cfg,
		History:      store.NewHistory(kvStore, bus, cfg.MaxHistory),
		Snippets:     store.NewSnippets(kvStore, bus),
		Folders:      store.NewFolders(kvStore, bus),
		Bus:          bus,
		Client:       client,
		kv:           kvStore,
		folderQueue:  syncer.NewQueue("folder"),
		snippetQueue: syncer.NewQueue("snippet"),
	}

	a.Supervisor = supervisor.New(supervisor.Options{
		Host:            cfg.BackendHost,
		Port:            cfg.BackendPort,
		ProjectRoot:     projectRoot,
		InterpreterPath: cfg.PythonPath,
		ScriptPath:      cfg.ScriptPath,
		Probe:           client.Health,
		AutoRestart:     !cfg.DisableAutoRestart,
		MaxRestarts:     cfg.MaxRestartAttempts,
		MonitorInterval: time.Duration(cfg.MonitorIntervalSec) * time.Second,
		HealthInterval:  time.Duration(cfg.HealthIntervalSec) * time.Second,
	})

	a.Watcher = watcher.New(watcher.Options{
		Interval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		OnCopy: func(text string) {
			if _, err := a.History.Add(text); err != nil {
				slog.Warn("failed to persist captured clipboard entry", "err", err)
			}
		},
	})

	return a, nil
}

// StartDaemon brings the runtime up: backend supervisor, clipboard watcher,
// a log stream of store change events, and a background folder
// reconciliation once the backend answers. A backend that fails to start is
// logged, not fatal; history capture works without it.
func (a *App) StartDaemon(ctx context.Context) {
	if err := a.Supervisor.Start(ctx); err != nil {
		slog.Warn("backend unavailable, running local-only", "err", err)
	}
	a.Watcher.Start()
	go a.logChanges(ctx)
	go a.initialSync(ctx)
}

// logChanges streams store change events to the log until the daemon stops.
func (a *App) logChanges(ctx context.Context) {
	events := a.Bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			slog.Info("store changed", "kind", e.Kind, "op", e.Op, "id", e.ID)
		}
	}
}

// initialSync reconciles local folders against the backend, waiting out the
// backend's startup window before giving up.
func (a *App) initialSync(ctx context.Context) {
	deadline := time.Now().Add(initialSyncWindow)
	for {
		err := a.SyncFolders(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			slog.Warn("startup folder sync abandoned", "err", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// Shutdown stops the watcher, drains the sync queues, tears down the backend
// process, and closes the database.
func (a *App) Shutdown() {
	a.Watcher.Stop()
	a.folderQueue.Close()
	a.snippetQueue.Close()
	a.Supervisor.Shutdown()
	if err := a.kv.Close(); err != nil {
		slog.Warn("failed to close database", "err", err)
	}
}

// Capture records clipboard content in the history, exactly as the watcher
// would. Used by the CLI's manual add.
func (a *App) Capture(content string) (clip.Entry, error) {
	if content == "" {
		return clip.Entry{}, errors.NewValidation("content is required")
	}
	return a.History.Add(content)
}

// CopyEntry places a history entry's content back on the system clipboard.
func (a *App) CopyEntry(id string) error {
	entry, err := a.History.Get(id)
	if err != nil {
		return err
	}
	return a.Watcher.SetClipboard(entry.Content)
}

// CopySnippet places a snippet's content on the system clipboard.
func (a *App) CopySnippet(id string) error {
	snippet, err := a.Snippets.Get(id)
	if err != nil {
		return err
	}
	return a.Watcher.SetClipboard(snippet.Content)
}

// CreateFolder creates a folder locally and schedules the backend create.
// A remote failure leaves the local folder in place.
func (a *App) CreateFolder(name, icon string) (clip.Folder, error) {
	folder, err := a.Folders.Create(name, icon)
	if err != nil {
		return clip.Folder{}, err
	}

	a.folderQueue.Enqueue(syncer.Task{
		Name: "create folder " + folder.Name,
		Run: func(ctx context.Context) error {
			return a.Client.CreateFolder(ctx, folder.Name)
		},
	})
	return folder, nil
}

// RenameFolder renames a folder locally and schedules the backend rename.
// This is the one operation with a corrective path: if the remote rename
// fails after retries, the local name is rolled back, unless a later rename
// already replaced it.
func (a *App) RenameFolder(id, newName string) error {
	oldName, err := a.Folders.Rename(id, newName)
	if err != nil {
		return err
	}

	a.folderQueue.Enqueue(syncer.Task{
		Name: fmt.Sprintf("rename folder %s -> %s", oldName, newName),
		Run: func(ctx context.Context) error {
			return a.Client.RenameFolder(ctx, oldName, newName)
		},
		OnFailure: func(syncErr error) {
			if err := a.Folders.RevertRename(id, oldName, newName); err != nil {
				slog.Warn("failed to roll back folder rename", "folder", id, "err", err)
			}
		},
	})
	return nil
}

// DeleteFolder removes a folder and every snippet filed in it, then schedules
// the backend delete. Snippets pointing at other folders, including dangling
// references, are untouched. A remote 404 means the folder was already gone.
func (a *App) DeleteFolder(id string) (clip.Folder, []clip.Snippet, error) {
	folder, err := a.Folders.Get(id)
	if err != nil {
		return clip.Folder{}, nil, err
	}

	removed, err := a.Snippets.RemoveByFolder(id)
	if err != nil {
		slog.Warn("cascade delete persisted partially", "folder", id, "err", err)
	}
	folder, err = a.Folders.Delete(id)
	if err != nil {
		return clip.Folder{}, removed, err
	}

	a.folderQueue.Enqueue(syncer.Task{
		Name: "delete folder " + folder.Name,
		Run: func(ctx context.Context) error {
			return ignoreNotFound(a.Client.DeleteFolder(ctx, folder.Name))
		},
	})
	return folder, removed, nil
}

// ToggleFolder flips a folder's expansion state. Display-only, never synced.
func (a *App) ToggleFolder(id string) error {
	return a.Folders.ToggleExpansion(id)
}

// SyncFolders pulls the backend's folder list and reconciles the local set
// against it. The backend is authoritative for existence and order.
func (a *App) SyncFolders(ctx context.Context) error {
	names, err := a.Client.FetchFolderNames(ctx)
	if err != nil {
		return err
	}
	return a.Folders.SyncFromBackend(names)
}

// CreateSnippet creates a snippet locally and schedules the backend create.
// folderID may be empty for an uncategorized snippet; a non-empty id must
// resolve to an existing folder.
func (a *App) CreateSnippet(name, content, folderID string, tags []string) (clip.Snippet, error) {
	if folderID != "" && !a.Folders.Exists(folderID) {
		return clip.Snippet{}, errors.NewNotFound("folder", folderID)
	}

	snippet, err := a.Snippets.Create(name, content, folderID, tags)
	if err != nil {
		return clip.Snippet{}, err
	}

	folderName := a.remoteFolderName(snippet.FolderID)
	a.snippetQueue.Enqueue(syncer.Task{
		Name: "create snippet " + snippet.Name,
		Run: func(ctx context.Context) error {
			return a.Client.CreateSnippet(ctx, snippet, folderName)
		},
	})
	return snippet, nil
}

// SaveFromHistory turns a history entry into a snippet, deriving the name
// from the entry's first line. The entry stays in the history.
func (a *App) SaveFromHistory(entryID, folderID string) (clip.Snippet, error) {
	entry, err := a.History.Get(entryID)
	if err != nil {
		return clip.Snippet{}, err
	}
	return a.CreateSnippet(clip.SuggestName(entry.Content), entry.Content, folderID, nil)
}

// UpdateSnippet replaces a snippet's stored fields and schedules the backend
// update. A remote 404 means the snippet was local-only or already deleted
// remotely, and counts as success.
func (a *App) UpdateSnippet(snippet clip.Snippet) (clip.Snippet, error) {
	if snippet.FolderID != "" && !a.Folders.Exists(snippet.FolderID) {
		return clip.Snippet{}, errors.NewNotFound("folder", snippet.FolderID)
	}

	updated, err := a.Snippets.Update(snippet)
	if err != nil {
		return clip.Snippet{}, err
	}

	folderName := a.remoteFolderName(updated.FolderID)
	patch := syncer.SnippetPatch{
		Name:    &updated.Name,
		Content: &updated.Content,
		Tags:    &updated.Tags,
	}
	clipID := clip.ShortID(updated.ID)
	a.snippetQueue.Enqueue(syncer.Task{
		Name: "update snippet " + updated.Name,
		Run: func(ctx context.Context) error {
			return ignoreNotFound(a.Client.UpdateSnippet(ctx, folderName, clipID, patch))
		},
	})
	return updated, nil
}

// DeleteSnippet removes a snippet locally and schedules the backend delete.
// A remote 404 counts as success.
func (a *App) DeleteSnippet(id string) (clip.Snippet, error) {
	snippet, err := a.Snippets.Delete(id)
	if err != nil {
		return clip.Snippet{}, err
	}

	folderName := a.remoteFolderName(snippet.FolderID)
	clipID := clip.ShortID(snippet.ID)
	a.snippetQueue.Enqueue(syncer.Task{
		Name: "delete snippet " + snippet.Name,
		Run: func(ctx context.Context) error {
			return ignoreNotFound(a.Client.DeleteSnippet(ctx, folderName, clipID))
		},
	})
	return snippet, nil
}

// ExportJSON writes the snippet and folder collections as a JSON document.
func (a *App) ExportJSON(w io.Writer) error {
	return export.WriteJSON(w, a.Snippets.All(), a.Folders.All())
}

// ExportHTML writes the snippet collection as a standalone HTML page,
// grouped by folder.
func (a *App) ExportHTML(w io.Writer) error {
	return export.WriteHTML(w, a.Snippets.All(), a.Folders.All())
}

// ImportStats reports the outcome of an import.
type ImportStats struct {
	SnippetsAdded   int `json:"snippets_added"`
	SnippetsSkipped int `json:"snippets_skipped"`
	FoldersAdded    int `json:"folders_added"`
	FoldersSkipped  int `json:"folders_skipped"`
}

// ImportJSON merges an export document into the local collections. Existing
// ids are never overwritten. Imported data is local-only until the next
// folder sync; snippets are not pushed to the backend retroactively.
func (a *App) ImportJSON(r io.Reader) (ImportStats, error) {
	doc, err := export.ReadJSON(r)
	if err != nil {
		return ImportStats{}, err
	}

	var stats ImportStats
	stats.FoldersAdded, stats.FoldersSkipped, err = a.Folders.ImportMerge(doc.Folders)
	if err != nil {
		return stats, err
	}
	stats.SnippetsAdded, stats.SnippetsSkipped, err = a.Snippets.ImportMerge(doc.Snippets)
	return stats, err
}

// DrainSync blocks until every scheduled backend call has finished. Used by
// tests and the CLI before one-shot commands exit.
func (a *App) DrainSync() {
	a.folderQueue.Drain()
	a.snippetQueue.Drain()
}

// remoteFolderName resolves a folder id to the name the backend keys on.
// Empty or dangling references map to the Uncategorized pseudo-folder.
func (a *App) remoteFolderName(folderID string) string {
	if folderID == "" {
		return store.UncategorizedName
	}
	folder, err := a.Folders.Get(folderID)
	if err != nil {
		return store.UncategorizedName
	}
	return folder.Name
}

func ignoreNotFound(err error) error {
	if errors.StatusNotFound(err) {
		slog.Debug("remote entity already absent, treating as success")
		return nil
	}
	return err
}
