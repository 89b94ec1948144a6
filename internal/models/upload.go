package models

// UploadPhase tracks one file through the two-store write and its
// compensation path.
type UploadPhase int

const (
	UploadQueued UploadPhase = iota
	UploadPuttingBlob
	UploadInsertingMetadata
	UploadCommitted
	UploadRollingBack
	UploadFailed
)

func (p UploadPhase) String() string {
	switch p {
	case UploadQueued:
		return "queued"
	case UploadPuttingBlob:
		return "putting-blob"
	case UploadInsertingMetadata:
		return "inserting-metadata"
	case UploadCommitted:
		return "committed"
	case UploadRollingBack:
		return "rolling-back"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadTask is the ephemeral per-file state of a batch upload. It exists
// only for the duration of the batch and is discarded after the caller is
// notified.
type UploadTask struct {
	FileName string
	Phase    UploadPhase
	Percent  int
	Err      error
}

// UploadFile is one file selected for a batch upload.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}
