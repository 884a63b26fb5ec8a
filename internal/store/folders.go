package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/kv"
)

// Folders is the ordered collection of snippet folders. Folder order values
// always form a contiguous 0..N-1 permutation matching display order.
type Folders struct {
	mu      sync.Mutex
	kv      *kv.Store
	bus     *Bus
	folders []clip.Folder // sorted by Order ascending
}

// defaultFolders are seeded when no folder blob exists or it fails to load.
func defaultFolders() []clip.Folder {
	now := time.Now().Unix()
	seed := []struct {
		name string
		icon string
	}{
		{"Email Templates", "📧"},
		{"Code Snippets", "💻"},
		{"Common Text", "📝"},
	}
	out := make([]clip.Folder, len(seed))
	for i, s := range seed {
		out[i] = clip.Folder{
			ID:         clip.NewID(),
			Name:       s.name,
			Icon:       s.icon,
			IsExpanded: true,
			Order:      i,
			CreatedAt:  now,
			ModifiedAt: now,
		}
	}
	return out
}

// NewFolders loads the persisted folders. A missing or undecodable blob
// seeds the default folder set rather than failing startup.
func NewFolders(store *kv.Store, bus *Bus) *Folders {
	f := &Folders{kv: store, bus: bus}

	data, err := store.Get(kv.KeyFolders)
	if err == nil && data != nil {
		if jsonErr := json.Unmarshal(data, &f.folders); jsonErr != nil {
			slog.Warn("corrupt folders blob, seeding defaults", "err", jsonErr)
			f.folders = nil
		}
	} else if err != nil {
		slog.Warn("failed to load folders, seeding defaults", "err", err)
	}

	if len(f.folders) == 0 {
		f.folders = defaultFolders()
		if err := f.persistLocked(); err != nil {
			slog.Warn("failed to persist seeded folders", "err", err)
		}
	}
	f.resortLocked()
	return f
}

// Create inserts a new folder at the front of the display order. Existing
// folders shift down by one position.
func (f *Folders) Create(name, icon string) (clip.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return clip.Folder{}, errors.NewValidation("folder name is required")
	}
	if icon == "" {
		icon = clip.DefaultFolderIcon
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().Unix()
	folder := clip.Folder{
		ID:         clip.NewID(),
		Name:       name,
		Icon:       icon,
		IsExpanded: true,
		Order:      0,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	for i := range f.folders {
		f.folders[i].Order++
	}
	f.folders = append([]clip.Folder{folder}, f.folders...)

	err := f.persistLocked()
	f.bus.Publish(Event{Kind: KindFolder, Op: OpAdd, ID: folder.ID})
	return folder, err
}

// Rename updates a folder's name locally and returns the folder's previous
// name, which the caller needs as the remote sync key. If the remote rename
// later fails, RevertRename restores the old name.
func (f *Folders) Rename(id, newName string) (oldName string, err error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return "", errors.NewValidation("folder name is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.folders {
		if f.folders[i].ID == id {
			oldName = f.folders[i].Name
			f.folders[i].Name = newName
			f.folders[i].ModifiedAt = time.Now().Unix()
			err = f.persistLocked()
			f.bus.Publish(Event{Kind: KindFolder, Op: OpUpdate, ID: id})
			return oldName, err
		}
	}
	return "", errors.NewNotFound("folder", id)
}

// RevertRename rolls the folder back to oldName after a failed remote
// rename. The revert only applies while the folder still carries newName:
// a later local rename wins over the stale failure.
func (f *Folders) RevertRename(id, oldName, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.folders {
		if f.folders[i].ID == id {
			if f.folders[i].Name != newName {
				return nil
			}
			f.folders[i].Name = oldName
			f.folders[i].ModifiedAt = time.Now().Unix()
			err := f.persistLocked()
			f.bus.Publish(Event{Kind: KindFolder, Op: OpRevert, ID: id})
			return err
		}
	}
	return nil
}

// Delete removes a folder and renumbers the remaining folders to keep the
// order contiguous. Snippet cascade-deletion is explicit and lives with the
// coordinator (see app.DeleteFolder), which removes contained snippets
// before calling this.
func (f *Folders) Delete(id string) (clip.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, folder := range f.folders {
		if folder.ID == id {
			f.folders = append(f.folders[:i], f.folders[i+1:]...)
			f.renumberLocked()
			err := f.persistLocked()
			f.bus.Publish(Event{Kind: KindFolder, Op: OpRemove, ID: id})
			return folder, err
		}
	}
	return clip.Folder{}, errors.NewNotFound("folder", id)
}

// ToggleExpansion flips a folder's expanded display state. Local-only: this
// never syncs to the backend.
func (f *Folders) ToggleExpansion(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.folders {
		if f.folders[i].ID == id {
			f.folders[i].IsExpanded = !f.folders[i].IsExpanded
			err := f.persistLocked()
			f.bus.Publish(Event{Kind: KindFolder, Op: OpUpdate, ID: id})
			return err
		}
	}
	return errors.NewNotFound("folder", id)
}

// SyncFromBackend reconciles the local folder set against the backend's
// ordered folder names. The backend is authoritative for folder existence
// and order; matching local folders (by name) keep their id, icon, and
// expansion state. Local folders absent from remoteNames are removed, and
// remote names with no local match are created at their remote position.
func (f *Folders) SyncFromBackend(remoteNames []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	byName := make(map[string]clip.Folder, len(f.folders))
	for _, folder := range f.folders {
		byName[folder.Name] = folder
	}

	now := time.Now().Unix()
	next := make([]clip.Folder, 0, len(remoteNames))
	for i, name := range remoteNames {
		if existing, ok := byName[name]; ok {
			existing.Order = i
			next = append(next, existing)
			continue
		}
		next = append(next, clip.Folder{
			ID:         clip.NewID(),
			Name:       name,
			Icon:       clip.DefaultFolderIcon,
			IsExpanded: true,
			Order:      i,
			CreatedAt:  now,
			ModifiedAt: now,
		})
	}

	f.folders = next
	f.resortLocked()
	err := f.persistLocked()
	f.bus.Publish(Event{Kind: KindFolder, Op: OpSync})
	return err
}

// Get returns the folder with the given id.
func (f *Folders) Get(id string) (clip.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, folder := range f.folders {
		if folder.ID == id {
			return folder, nil
		}
	}
	return clip.Folder{}, errors.NewNotFound("folder", id)
}

// GetByName returns the folder with the given name.
func (f *Folders) GetByName(name string) (clip.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, folder := range f.folders {
		if folder.Name == name {
			return folder, nil
		}
	}
	return clip.Folder{}, errors.NewNotFound("folder", name)
}

// All returns a copy of the folders in display order.
func (f *Folders) All() []clip.Folder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]clip.Folder(nil), f.folders...)
}

// Exists reports whether a folder with the given id is present.
func (f *Folders) Exists(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, folder := range f.folders {
		if folder.ID == id {
			return true
		}
	}
	return false
}

// ImportMerge appends folders whose ids are not already present, skipping
// the rest. Imported folders sort after existing ones, keeping their
// relative order; order values are renumbered to stay contiguous.
func (f *Folders) ImportMerge(incoming []clip.Folder) (added, skipped int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := make(map[string]bool, len(f.folders))
	for _, folder := range f.folders {
		existing[folder.ID] = true
	}

	fresh := make([]clip.Folder, 0, len(incoming))
	for _, folder := range incoming {
		if folder.ID == "" || existing[folder.ID] {
			skipped++
			continue
		}
		existing[folder.ID] = true
		fresh = append(fresh, folder)
		added++
	}

	if added == 0 {
		return added, skipped, nil
	}

	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].Order < fresh[j].Order })
	f.folders = append(f.folders, fresh...)
	f.renumberLocked()
	err = f.persistLocked()
	f.bus.Publish(Event{Kind: KindFolder, Op: OpRefresh})
	return added, skipped, err
}

func (f *Folders) resortLocked() {
	sort.SliceStable(f.folders, func(i, j int) bool {
		return f.folders[i].Order < f.folders[j].Order
	})
}

// renumberLocked reassigns contiguous 0..N-1 order values in current slice
// order. Call with folders already sorted.
func (f *Folders) renumberLocked() {
	for i := range f.folders {
		f.folders[i].Order = i
	}
}

func (f *Folders) persistLocked() error {
	data, err := json.Marshal(f.folders)
	if err != nil {
		return errors.NewPersistence(kv.KeyFolders, err)
	}
	if err := f.kv.Put(kv.KeyFolders, data); err != nil {
		return errors.NewPersistence(kv.KeyFolders, err)
	}
	return nil
}
