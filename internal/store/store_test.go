package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doccapture/constants"
	"github.com/joseph-ayodele/doccapture/internal/entity"
)

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	s, err := NewStore(backend, "test", nil)
	require.NoError(t, err)
	return s, backend
}

func pendingUpload(localID string, created time.Time) entity.PendingUpload {
	return entity.PendingUpload{
		LocalID:    localID,
		ImageURI:   "file:///" + localID + ".jpg",
		PipelineID: "pipeline-1",
		CreatedAt:  created,
	}
}

func TestAddPendingUploadCreatesHistoryEntry(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddPendingUpload(pendingUpload("a", time.Now())))

	uploads := s.GetPendingUploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "a", uploads[0].LocalID)
	assert.Zero(t, uploads[0].RetryCount)

	hist := s.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, "a", hist[0].LocalID)
	assert.Equal(t, constants.StatusPending, hist[0].Status)
	assert.Empty(t, hist[0].ID, "no server id while pending")
}

func TestCompletePendingUpload(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddPendingUpload(pendingUpload("a", time.Now())))
	require.NoError(t, s.AddPendingUpload(pendingUpload("b", time.Now())))

	conf := 0.88
	err := s.CompletePendingUpload("a", UploadResult{ID: "srv-1", Status: constants.StatusUploaded, Confidence: &conf})
	require.NoError(t, err)

	uploads := s.GetPendingUploads()
	require.Len(t, uploads, 1, "exactly one queue entry removed")
	assert.Equal(t, "b", uploads[0].LocalID)

	var item *entity.ScanHistoryItem
	for _, h := range s.GetHistory() {
		if h.LocalID == "a" {
			cp := h
			item = &cp
		}
	}
	require.NotNil(t, item)
	assert.Equal(t, "srv-1", item.ID)
	assert.Equal(t, constants.StatusUploaded, item.Status)
	require.NotNil(t, item.ConfidenceScore)
	assert.InDelta(t, 0.88, *item.ConfidenceScore, 1e-9)

	// Completing again is an error: the entry is gone.
	err = s.CompletePendingUpload("a", UploadResult{ID: "srv-1", Status: constants.StatusUploaded})
	require.Error(t, err)
}

func TestFailPendingUploadIncrementsRetryCount(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddPendingUpload(pendingUpload("a", time.Now())))

	require.NoError(t, s.FailPendingUpload("a", "timeout"))
	require.NoError(t, s.FailPendingUpload("a", "timeout again"))

	uploads := s.GetPendingUploads()
	require.Len(t, uploads, 1, "failure leaves the entry queued for retry")
	assert.Equal(t, 2, uploads[0].RetryCount)

	hist := s.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, constants.StatusError, hist[0].Status)
	assert.Equal(t, "timeout again", hist[0].Error)
}

func TestRemovePendingUploadDeletesBoth(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddPendingUpload(pendingUpload("a", time.Now())))

	require.NoError(t, s.RemovePendingUpload("a"))
	assert.Empty(t, s.GetPendingUploads())
	assert.Empty(t, s.GetHistory())
}

func TestHistoryCapAndOrdering(t *testing.T) {
	s, _ := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 105; i++ {
		err := s.AddToHistory(entity.ScanHistoryItem{
			ID:        fmt.Sprintf("srv-%03d", i),
			LocalID:   fmt.Sprintf("loc-%03d", i),
			Status:    constants.StatusValidated,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	hist := s.GetHistory()
	require.Len(t, hist, constants.HistoryCap)
	assert.Equal(t, "srv-104", hist[0].ID, "most recent first")
	assert.Equal(t, "srv-005", hist[len(hist)-1].ID, "oldest entries dropped")
}

func TestAddToHistoryUpsertsInPlace(t *testing.T) {
	s, _ := newTestStore(t)

	item := entity.ScanHistoryItem{ID: "srv-1", LocalID: "a", Status: constants.StatusUploaded, CreatedAt: time.Now()}
	require.NoError(t, s.AddToHistory(item))

	item.Status = constants.StatusValidated
	require.NoError(t, s.AddToHistory(item))

	hist := s.GetHistory()
	require.Len(t, hist, 1, "repeated id must not duplicate")
	assert.Equal(t, constants.StatusValidated, hist[0].Status)
}

func TestMergeServerHistoryIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	batch := []entity.ScanHistoryItem{
		{ID: "srv-1", LocalID: "a", Status: constants.StatusValidated, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "srv-2", LocalID: "b", Status: constants.StatusRejected, CreatedAt: base.Add(time.Hour)},
		{ID: "srv-3", LocalID: "c", Status: constants.StatusUploaded, CreatedAt: base},
	}

	stats, err := s.MergeServerHistory(batch)
	require.NoError(t, err)
	assert.Equal(t, entity.MergeStats{Merged: 3, Conflicts: 0}, stats)
	first := s.GetHistory()

	stats, err = s.MergeServerHistory(batch)
	require.NoError(t, err)
	assert.Equal(t, entity.MergeStats{Merged: 3, Conflicts: 0}, stats)
	assert.Equal(t, first, s.GetHistory(), "same batch twice yields identical state")

	assert.Equal(t, "srv-1", first[0].ID, "sorted by created_at descending")
	assert.Equal(t, "srv-3", first[2].ID)
}

func TestMergeRespectsLocallyModified(t *testing.T) {
	s, _ := newTestStore(t)

	created := time.Now().UTC()
	require.NoError(t, s.AddToHistory(entity.ScanHistoryItem{
		ID: "srv-1", LocalID: "a", Status: constants.StatusUploaded, CreatedAt: created,
	}))
	require.NoError(t, s.MarkLocallyModified("srv-1"))

	stats, err := s.MergeServerHistory([]entity.ScanHistoryItem{
		{ID: "srv-1", LocalID: "a", Status: constants.StatusRejected, CreatedAt: created},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 0, stats.Merged)

	hist := s.GetHistory()
	require.Len(t, hist, 1)
	assert.Equal(t, constants.StatusUploaded, hist[0].Status, "local entry untouched")
	assert.True(t, hist[0].LocallyModified, "flag is sticky, merges never clear it")
}

func TestMergeLinksPendingEntryByLocalID(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.AddPendingUpload(pendingUpload("a", time.Now())))

	stats, err := s.MergeServerHistory([]entity.ScanHistoryItem{
		{ID: "srv-9", LocalID: "a", Status: constants.StatusValidated, CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged)

	hist := s.GetHistory()
	require.Len(t, hist, 1, "server item matched the pending entry, no duplicate")
	assert.Equal(t, "srv-9", hist[0].ID)
	assert.Equal(t, constants.StatusValidated, hist[0].Status)
}

func TestMarkLocallyModifiedUnknownID(t *testing.T) {
	s, _ := newTestStore(t)
	require.Error(t, s.MarkLocallyModified("nope"))
}

func TestCorruptStateResetsEmpty(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Save("test:history", []byte("{not json")))
	require.NoError(t, backend.Save("test:pending", []byte("[42]")))

	s, err := NewStore(backend, "test", nil)
	require.NoError(t, err, "corrupt cache must not block startup")
	assert.Empty(t, s.GetHistory())
	assert.Empty(t, s.GetPendingUploads())
}

func TestStatePersistsAcrossInstances(t *testing.T) {
	backend := NewMemoryBackend()
	s1, err := NewStore(backend, "test", nil)
	require.NoError(t, err)
	require.NoError(t, s1.AddPendingUpload(pendingUpload("a", time.Now())))
	require.NoError(t, s1.FailPendingUpload("a", "offline"))

	s2, err := NewStore(backend, "test", nil)
	require.NoError(t, err)
	uploads := s2.GetPendingUploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, 1, uploads[0].RetryCount)
	require.Len(t, s2.GetHistory(), 1)
}

func TestAccessorsReturnDefensiveCopies(t *testing.T) {
	s, _ := newTestStore(t)
	conf := 0.5
	require.NoError(t, s.AddToHistory(entity.ScanHistoryItem{
		ID: "srv-1", LocalID: "a", Status: constants.StatusUploaded,
		ConfidenceScore: &conf, CreatedAt: time.Now(),
	}))

	hist := s.GetHistory()
	hist[0].Status = constants.StatusRejected
	*hist[0].ConfidenceScore = 0.99

	fresh := s.GetHistory()
	assert.Equal(t, constants.StatusUploaded, fresh[0].Status)
	assert.InDelta(t, 0.5, *fresh[0].ConfidenceScore, 1e-9)
}
