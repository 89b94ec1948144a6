package asset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epetrov/studyvault/internal/blobstore"
	"github.com/epetrov/studyvault/internal/logging"
	"github.com/epetrov/studyvault/internal/models"
	"github.com/google/uuid"
)

const storagePrefix = "assets"

// Pipeline composes the blob store and the asset metadata store into an
// as-if-atomic "store asset" operation. There is no cross-store transaction:
// a blob write followed by a failed metadata insert is corrected with an
// explicit compensating blob delete.
type Pipeline struct {
	blobs    blobstore.Store
	records  Repository
	logger   logging.Logger
	pageSize int

	// seq distinguishes same-name uploads from the same owner within one
	// nanosecond tick. The path scheme is the only same-owner collision
	// defense; no lock serializes uploads.
	seq atomic.Int64

	mu      sync.Mutex
	orphans []string
}

// NewPipeline constructs the upload pipeline. pageSize bounds ListAssets.
func NewPipeline(blobs blobstore.Store, records Repository, logger logging.Logger, pageSize int) *Pipeline {
	return &Pipeline{
		blobs:    blobs,
		records:  records,
		logger:   logger.With("module", "asset_pipeline"),
		pageSize: pageSize,
	}
}

// ListAssets returns the owner's asset records, most recent first, bounded
// to the configured page size.
func (p *Pipeline) ListAssets(ctx context.Context, owner string) ([]*models.AssetRecord, error) {
	return p.records.ListByOwner(ctx, owner, p.pageSize)
}

// Upload stores each file independently and concurrently. One file's failure
// never aborts or rolls back its batch siblings. The progress callback, if
// non-nil, may be invoked from any file's goroutine, interleaved; each call
// receives a snapshot of that file's task.
//
// The returned slice holds the final task outcome per file, index-aligned
// with files.
func (p *Pipeline) Upload(ctx context.Context, owner string, files []models.UploadFile, progress func(models.UploadTask)) []models.UploadTask {
	tasks := make([]models.UploadTask, len(files))

	notify := func(t models.UploadTask) {
		if progress != nil {
			progress(t)
		}
	}

	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tasks[i] = p.uploadOne(ctx, owner, files[i], notify)
		}(i)
	}
	wg.Wait()

	return tasks
}

// uploadOne runs the two-phase write for a single file: put the blob, insert
// the metadata record, compensate on metadata failure.
func (p *Pipeline) uploadOne(ctx context.Context, owner string, file models.UploadFile, notify func(models.UploadTask)) models.UploadTask {
	task := models.UploadTask{FileName: file.Name, Phase: models.UploadQueued}
	notify(task)

	path := p.derivePath(owner, file.Name)

	task.Phase = models.UploadPuttingBlob
	notify(task)

	if err := p.blobs.Put(ctx, path, file.Data, file.ContentType); err != nil {
		task.Phase = models.UploadFailed
		task.Err = err
		notify(task)
		return task
	}

	task.Percent = 50
	task.Phase = models.UploadInsertingMetadata
	notify(task)

	rec := &models.AssetRecord{
		ID:          uuid.NewString(),
		Owner:       owner,
		FileName:    file.Name,
		Kind:        models.KindForFileName(file.Name),
		SizeText:    sizeText(len(file.Data)),
		StoragePath: path,
		CreatedAt:   time.Now(),
	}

	if err := p.records.Insert(ctx, rec); err != nil {
		task.Phase = models.UploadRollingBack
		notify(task)

		p.compensate(ctx, path)

		// The metadata failure is the root cause the caller must act on;
		// the rollback outcome never masks it.
		task.Phase = models.UploadFailed
		task.Err = err
		notify(task)
		return task
	}

	task.Percent = 100
	task.Phase = models.UploadCommitted
	notify(task)
	return task
}

// compensate deletes the blob written by a failed upload. A failed delete
// leaves an orphan blob: it is logged, recorded for operator reconciliation,
// and never retried here.
func (p *Pipeline) compensate(ctx context.Context, path string) {
	err := p.blobs.Remove(ctx, []string{path})
	if err == nil {
		return
	}
	p.logger.Error(ctx, "orphan blob: rollback delete failed", "path", path, "error", err)

	p.mu.Lock()
	p.orphans = append(p.orphans, path)
	p.mu.Unlock()
}

// OrphanPaths returns the blob paths orphaned by failed rollbacks since the
// pipeline was created, for operator reconciliation.
func (p *Pipeline) OrphanPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.orphans))
	copy(out, p.orphans)
	return out
}

// Remove deletes the blob first and only then the metadata record. If the
// blob delete fails the record is left untouched: the asset stays fully
// present and the caller is told the removal did not happen. If the record
// delete fails after the blob is gone, the surviving record references a
// missing blob; that inverse-orphan condition is logged for the downstream
// consistency sweep and the call still fails.
func (p *Pipeline) Remove(ctx context.Context, rec *models.AssetRecord) error {
	if err := p.blobs.Remove(ctx, []string{rec.StoragePath}); err != nil {
		return fmt.Errorf("removing blob: %w", err)
	}

	if err := p.records.Delete(ctx, rec.ID); err != nil {
		p.logger.Error(ctx, "inverse orphan: record survives deleted blob",
			"asset_id", rec.ID, "path", rec.StoragePath, "error", err)
		return fmt.Errorf("removing record: %w", err)
	}

	return nil
}

// SignedReadURL returns a presigned read URL for the record's blob, valid
// for ttl.
func (p *Pipeline) SignedReadURL(ctx context.Context, rec *models.AssetRecord, ttl time.Duration) (string, error) {
	return p.blobs.SignedURL(ctx, rec.StoragePath, ttl)
}

// derivePath builds an owner-scoped, collision-resistant storage path:
// sanitized original name plus a monotonically distinguishing suffix, so two
// uploads of the same filename by the same owner never collide.
func (p *Pipeline) derivePath(owner, fileName string) string {
	return fmt.Sprintf("%s/%s/%d-%04d-%s",
		storagePrefix, owner, time.Now().UnixNano(), p.seq.Add(1), sanitizeName(fileName))
}

// sanitizeName reduces a user-supplied file name to a safe storage segment.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// sizeText renders a byte count the way the dashboard displays it.
func sizeText(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
