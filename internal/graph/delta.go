package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/graphmail/graphmail/internal/logging"
	"github.com/graphmail/graphmail/internal/store"
)

// CursorStore persists one opaque delta cursor per folder as a JSON map in a
// single file. Folders never share cursors.
type CursorStore struct {
	mu   sync.Mutex
	path string
}

// NewCursorStore returns a store backed by the given file path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

func (s *CursorStore) load() (map[string]string, error) {
	data, err := store.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	cursors := map[string]string{}
	if len(data) == 0 {
		return cursors, nil
	}
	if err := json.Unmarshal(data, &cursors); err != nil {
		// A corrupt cursor file just means a full re-sync for every folder.
		return map[string]string{}, nil
	}
	return cursors, nil
}

// Get returns the cursor for the folder, or "" when none is stored.
func (s *CursorStore) Get(folder string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursors, err := s.load()
	if err != nil {
		return "", err
	}
	return cursors[folder], nil
}

// Set stores the folder's cursor, leaving other folders untouched.
func (s *CursorStore) Set(folder, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursors, err := s.load()
	if err != nil {
		return err
	}
	cursors[folder] = cursor
	return s.save(cursors)
}

// Clear removes the folder's cursor.
func (s *CursorStore) Clear(folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursors, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := cursors[folder]; !ok {
		return nil
	}
	delete(cursors, folder)
	return s.save(cursors)
}

// ClearAll removes every stored cursor.
func (s *CursorStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Remove(s.path)
}

func (s *CursorStore) save(cursors map[string]string) error {
	data, err := json.Marshal(cursors)
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(s.path, data, 0o600)
}

// DeltaResult is the outcome of one delta synchronization round.
type DeltaResult struct {
	// Folder is the folder that was synchronized.
	Folder string `json:"folder"`
	// Messages holds created or changed messages.
	Messages []Message `json:"messages"`
	// RemovedIDs lists messages deleted since the last round.
	RemovedIDs []string `json:"removed_ids,omitempty"`
	// FullSync is true when the round started from scratch rather than
	// from a stored cursor.
	FullSync bool `json:"full_sync"`
}

// ChangeTracker synchronizes folder state incrementally. Each round fetches
// everything that changed since the previous round's cursor and stores the
// new cursor only once the full page sequence completed, so a failed round
// never loses changes.
type ChangeTracker struct {
	client  *Client
	cursors *CursorStore
	logger  *slog.Logger
}

// NewChangeTracker builds a tracker over the client and cursor store.
func NewChangeTracker(client *Client, cursors *CursorStore, logger *slog.Logger) *ChangeTracker {
	return &ChangeTracker{
		client:  client,
		cursors: cursors,
		logger:  logging.WithOperation(logger, "delta"),
	}
}

// FetchChanges runs one delta round for the folder. With no stored cursor it
// performs a full synchronization. A cursor the service rejects as invalid
// or expired is discarded and the round falls back to one full
// synchronization attempt; any other failure keeps the stored cursor so the
// next round can retry the same window.
func (t *ChangeTracker) FetchChanges(ctx context.Context, folder string) (*DeltaResult, error) {
	cursor, err := t.cursors.Get(folder)
	if err != nil {
		return nil, &DeltaError{Folder: folder, Err: err}
	}

	// A cursor that does not reference its own folder would replay another
	// folder's change stream; treat it like a rejected cursor.
	if cursor != "" && !cursorMatchesFolder(cursor, folder) {
		t.logger.Warn("stored cursor does not match folder, discarding",
			logging.Folder(folder))
		cursor = ""
		if err := t.cursors.Clear(folder); err != nil {
			return nil, &DeltaError{Folder: folder, Err: err}
		}
	}

	result, err := t.runRound(ctx, folder, cursor)
	if err == nil {
		return result, nil
	}

	if cursor != "" && cursorRejected(err) {
		t.logger.Warn("delta cursor rejected, falling back to full sync",
			logging.Folder(folder), logging.Err(err))
		if cerr := t.cursors.Clear(folder); cerr != nil {
			return nil, &DeltaError{Folder: folder, Err: cerr}
		}
		result, err = t.runRound(ctx, folder, "")
		if err == nil {
			return result, nil
		}
	}
	t.logger.Error("delta round failed",
		logging.Folder(folder),
		logging.Status(logging.StatusError),
		logging.Err(err))
	return nil, &DeltaError{Folder: folder, Err: err}
}

// runRound walks the page sequence starting at cursor (or the folder's delta
// root when empty), accumulating changes. Partial results from a failed
// sequence are discarded and the stored cursor is left untouched.
func (t *ChangeTracker) runRound(ctx context.Context, folder, cursor string) (*DeltaResult, error) {
	result := &DeltaResult{Folder: folder, FullSync: cursor == ""}

	next := cursor
	if next == "" {
		next = "/me/mailFolders/" + folder + "/messages/delta"
	}

	var deltaLink string
	for next != "" {
		var page graphMessagePage
		if err := t.client.do(ctx, http.MethodGet, next, nil, nil, &page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			gm := &page.Value[i]
			if gm.Removed != nil {
				result.RemovedIDs = append(result.RemovedIDs, gm.ID)
				continue
			}
			result.Messages = append(result.Messages, normalize(gm))
		}
		deltaLink = page.DeltaLink
		next = page.NextLink
	}

	// The service should always close a sequence with a new cursor. If it
	// did not, keep the previous one rather than storing nothing.
	if deltaLink != "" {
		if err := t.cursors.Set(folder, deltaLink); err != nil {
			return nil, err
		}
	} else {
		t.logger.Warn("delta round ended without a new cursor, retaining previous",
			logging.Folder(folder))
	}

	t.logger.Info("delta round complete",
		logging.Folder(folder),
		logging.Status(logging.StatusSuccess),
		"changed", len(result.Messages),
		"removed", len(result.RemovedIDs),
		"full_sync", result.FullSync)
	return result, nil
}

// cursorMatchesFolder reports whether the cursor URL belongs to the folder's
// change stream.
func cursorMatchesFolder(cursor, folder string) bool {
	return strings.Contains(cursor, "/mailFolders/"+folder+"/") ||
		strings.Contains(cursor, "/mailFolders('"+folder+"')/")
}
