package asset

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/models"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestRepositoryInsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO asset_records")).
		WithArgs("a-1", "owner-1", "notes.pdf", "pdf", "4 B", "assets/owner-1/x").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.AssetRecord{
		ID: "a-1", Owner: "owner-1", FileName: "notes.pdf",
		Kind: models.KindPDF, SizeText: "4 B", StoragePath: "assets/owner-1/x",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRepositoryInsert_StoreError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO asset_records")).
		WillReturnError(errors.New("connection refused"))

	err := repo.Insert(context.Background(), &models.AssetRecord{ID: "a-1"})
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM asset_records WHERE id = $1")).
		WithArgs("a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "a-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestRepositoryDelete_MissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM asset_records WHERE id = $1")).
		WithArgs("a-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "a-x")
	if !errors.Is(err, common.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRepositoryListByOwner(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "owner", "file_name", "kind", "size_text", "storage_path", "created_at"}).
		AddRow("a-2", "owner-1", "new.pdf", "pdf", "1.0 KB", "assets/owner-1/2", now).
		AddRow("a-1", "owner-1", "old.png", "image", "2.0 KB", "assets/owner-1/1", now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner, file_name, kind, size_text, storage_path, created_at FROM asset_records")).
		WithArgs("owner-1", 100).
		WillReturnRows(rows)

	records, err := repo.ListByOwner(context.Background(), "owner-1", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "a-2" || records[0].Kind != models.KindPDF {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Kind != models.KindImage {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestRepositoryListByOwner_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner, file_name, kind, size_text, storage_path, created_at FROM asset_records")).
		WithArgs("owner-x", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner", "file_name", "kind", "size_text", "storage_path", "created_at"}))

	records, err := repo.ListByOwner(context.Background(), "owner-x", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
