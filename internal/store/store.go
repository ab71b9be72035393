package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/common"
	"github.com/joseph-ayodele/doccapture/internal/entity"
)

// UploadResult carries the server's answer for one completed upload.
type UploadResult struct {
	ID         string
	Status     constants.UploadStatus
	Confidence *float64
}

// Store owns the pending-upload queue and the bounded scan history.
// All read-modify-persist sequences run under one mutex: the store is a
// single-writer log per device. The server stays the authority for final
// conflict resolution; this store only approximates reconciliation
// locally.
type Store struct {
	mu      sync.Mutex
	backend Backend
	prefix  string
	logger  *slog.Logger

	pending map[string]entity.PendingUpload
	history []entity.ScanHistoryItem // most-recent-first
}

// NewStore loads both collections from the backend. Malformed persisted
// JSON resets the affected collection to empty rather than failing:
// availability wins, the server remains the source of truth.
func NewStore(backend Backend, prefix string, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, common.NewAppError("STORE_ERROR", "persistence backend is nil", common.ErrInvalidInput)
	}
	if prefix == "" {
		return nil, common.NewAppError("STORE_ERROR", "key prefix is empty", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend: backend,
		prefix:  prefix,
		logger:  logger,
		pending: make(map[string]entity.PendingUpload),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) pendingKey() string { return s.prefix + ":pending" }
func (s *Store) historyKey() string { return s.prefix + ":history" }

func (s *Store) load() error {
	raw, err := s.backend.Load(s.pendingKey())
	if err != nil {
		return common.WrapError(err, "load pending queue")
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &s.pending); err != nil {
			s.logger.Warn("store.pending.corrupt_reset", "error",
				common.NewAppError("STORE_ERROR", "pending queue unreadable", common.ErrStorageCorrupt))
			s.pending = make(map[string]entity.PendingUpload)
		}
	}
	raw, err = s.backend.Load(s.historyKey())
	if err != nil {
		return common.WrapError(err, "load history")
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &s.history); err != nil {
			s.logger.Warn("store.history.corrupt_reset", "error",
				common.NewAppError("STORE_ERROR", "history unreadable", common.ErrStorageCorrupt))
			s.history = nil
		}
	}
	s.logger.Info("store.loaded", "pending", len(s.pending), "history", len(s.history))
	return nil
}

// persistLocked writes both collections. Callers hold s.mu.
func (s *Store) persistLocked() error {
	bs, err := json.Marshal(s.pending)
	if err != nil {
		return common.WrapError(err, "encode pending queue")
	}
	if err := s.backend.Save(s.pendingKey(), bs); err != nil {
		return err
	}
	hist := s.history
	if hist == nil {
		hist = []entity.ScanHistoryItem{}
	}
	bs, err = json.Marshal(hist)
	if err != nil {
		return common.WrapError(err, "encode history")
	}
	return s.backend.Save(s.historyKey(), bs)
}

// AddPendingUpload queues a capture and records its pending history
// entry. Exactly one history entry exists per queued localId.
func (s *Store) AddPendingUpload(u entity.PendingUpload) error {
	if u.LocalID == "" {
		return common.NewAppError("STORE_ERROR", "pending upload has no localId", common.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.pending[u.LocalID] = u
	s.upsertHistoryLocked(entity.ScanHistoryItem{
		LocalID:   u.LocalID,
		Status:    constants.StatusPending,
		CreatedAt: u.CreatedAt,
	})
	s.logger.Info("store.pending.added", "local_id", u.LocalID, "pipeline_id", u.PipelineID)
	return s.persistLocked()
}

// CompletePendingUpload atomically removes the queue entry and updates
// the matching history entry's id/status/confidence in place.
func (s *Store) CompletePendingUpload(localID string, result UploadResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[localID]; !ok {
		return common.NewAppError("STORE_ERROR",
			fmt.Sprintf("no pending upload for localId %s", localID), common.ErrNotFound)
	}
	delete(s.pending, localID)

	for i := range s.history {
		if s.history[i].LocalID == localID {
			s.history[i].ID = result.ID
			s.history[i].Status = result.Status
			s.history[i].ConfidenceScore = copyFloat(result.Confidence)
			s.history[i].Error = ""
			break
		}
	}
	s.logger.Info("store.pending.completed", "local_id", localID, "id", result.ID, "status", string(result.Status))
	return s.persistLocked()
}

// FailPendingUpload records a failed attempt: the queue entry stays for
// future retry with an incremented retryCount, and the history entry is
// marked with the error.
func (s *Store) FailPendingUpload(localID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.pending[localID]
	if !ok {
		return common.NewAppError("STORE_ERROR",
			fmt.Sprintf("no pending upload for localId %s", localID), common.ErrNotFound)
	}
	u.RetryCount++
	s.pending[localID] = u

	for i := range s.history {
		if s.history[i].LocalID == localID {
			s.history[i].Status = constants.StatusError
			s.history[i].Error = message
			break
		}
	}
	s.logger.Warn("store.pending.failed", "local_id", localID, "retry_count", u.RetryCount, "error", message)
	return s.persistLocked()
}

// RemovePendingUpload deletes both the queue entry and the matching
// history entry (user-initiated cancel).
func (s *Store) RemovePendingUpload(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, localID)
	for i := range s.history {
		if s.history[i].LocalID == localID {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
	s.logger.Info("store.pending.removed", "local_id", localID)
	return s.persistLocked()
}

// MarkLocallyModified sets the sticky advisory flag on the entry with
// the given server id. Merges never clear it.
func (s *Store) MarkLocallyModified(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i].LocallyModified = true
			return s.persistLocked()
		}
	}
	return common.NewAppError("STORE_ERROR",
		fmt.Sprintf("no history entry with id %s", id), common.ErrNotFound)
}

// AddToHistory upserts one entry, unique by id or localId, newest first.
func (s *Store) AddToHistory(item entity.ScanHistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertHistoryLocked(item)
	return s.persistLocked()
}

// MergeServerHistory reconciles the authoritative server view into local
// history. Server wins for every entry except those the user modified
// locally, which are left untouched and counted as conflicts.
func (s *Store) MergeServerHistory(items []entity.ScanHistoryItem) (entity.MergeStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats entity.MergeStats
	for _, item := range items {
		idx := s.findHistoryLocked(item.ID, item.LocalID)
		if idx < 0 {
			item.ConfidenceScore = copyFloat(item.ConfidenceScore)
			s.history = append([]entity.ScanHistoryItem{item}, s.history...)
			stats.Merged++
			continue
		}
		if s.history[idx].LocallyModified {
			stats.Conflicts++
			continue
		}
		s.history[idx].ID = item.ID
		s.history[idx].Status = item.Status
		s.history[idx].ConfidenceScore = copyFloat(item.ConfidenceScore)
		s.history[idx].Error = item.Error
		stats.Merged++
	}

	sort.SliceStable(s.history, func(i, j int) bool {
		return s.history[i].CreatedAt.After(s.history[j].CreatedAt)
	})
	if len(s.history) > constants.HistoryCap {
		s.history = s.history[:constants.HistoryCap]
	}

	s.logger.Info("store.merge.ok", "merged", stats.Merged, "conflicts", stats.Conflicts)
	return stats, s.persistLocked()
}

// GetPendingUploads returns a defensive copy of the queue, oldest first.
func (s *Store) GetPendingUploads() []entity.PendingUpload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.PendingUpload, 0, len(s.pending))
	for _, u := range s.pending {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GetHistory returns a defensive copy, most-recent-first, never longer
// than the cap.
func (s *Store) GetHistory() []entity.ScanHistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.ScanHistoryItem, len(s.history))
	for i, item := range s.history {
		item.ConfidenceScore = copyFloat(item.ConfidenceScore)
		out[i] = item
	}
	return out
}

// upsertHistoryLocked inserts newest-first or updates in place, matching
// by server id first, then localId. Callers hold s.mu.
func (s *Store) upsertHistoryLocked(item entity.ScanHistoryItem) {
	item.ConfidenceScore = copyFloat(item.ConfidenceScore)
	if idx := s.findHistoryLocked(item.ID, item.LocalID); idx >= 0 {
		// Keep the sticky flag; everything else follows the new entry.
		item.LocallyModified = item.LocallyModified || s.history[idx].LocallyModified
		s.history[idx] = item
		return
	}
	s.history = append([]entity.ScanHistoryItem{item}, s.history...)
	if len(s.history) > constants.HistoryCap {
		s.history = s.history[:constants.HistoryCap]
	}
}

func (s *Store) findHistoryLocked(id, localID string) int {
	if id != "" {
		for i := range s.history {
			if s.history[i].ID == id {
				return i
			}
		}
	}
	if localID != "" {
		for i := range s.history {
			if s.history[i].LocalID == localID {
				return i
			}
		}
	}
	return -1
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
