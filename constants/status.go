package constants

// UploadStatus is the canonical status for scan history entries.
type UploadStatus string

// Stable values (these exact strings are persisted and exchanged with the server).
const (
	StatusPending   UploadStatus = "pending"   // captured locally, not yet uploaded
	StatusUploaded  UploadStatus = "uploaded"  // accepted by the server, awaiting validation
	StatusValidated UploadStatus = "validated" // server-side validation passed
	StatusRejected  UploadStatus = "rejected"  // server-side validation rejected
	StatusError     UploadStatus = "error"     // upload or extraction failed
)

// IsValidStatus reports whether s is one of the stable status values.
func IsValidStatus(s string) bool {
	switch UploadStatus(s) {
	case StatusPending, StatusUploaded, StatusValidated, StatusRejected, StatusError:
		return true
	}
	return false
}

// HistoryCap is the maximum number of retained scan history entries.
// Oldest entries are dropped first.
const HistoryCap = 100
