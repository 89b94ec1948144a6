package models

import (
	"path/filepath"
	"strings"
	"time"
)

// AssetKind is the declared type of an uploaded asset.
type AssetKind string

const (
	KindPDF     AssetKind = "pdf"
	KindImage   AssetKind = "image"
	KindDoc     AssetKind = "doc"
	KindUnknown AssetKind = "unknown"
)

// KindForFileName declares an asset kind from the file extension.
func KindForFileName(name string) AssetKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return KindImage
	case ".doc", ".docx", ".txt", ".md", ".odt":
		return KindDoc
	default:
		return KindUnknown
	}
}

// AssetRecord describes one stored asset. StoragePath is the join key to the
// blob store and is mandatory: a record must never exist without its blob.
type AssetRecord struct {
	ID          string
	Owner       string
	FileName    string
	Kind        AssetKind
	SizeText    string
	StoragePath string
	CreatedAt   time.Time
}
