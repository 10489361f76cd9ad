package storage

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/port"
)

var unsafeActorChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WorkbookArchive keeps every imported rule workbook as rules/v<version>.xlsx
type WorkbookArchive struct {
	files  *LocalFileStorage
	logger *zap.Logger
}

// NewWorkbookArchive creates an archive rooted at baseDir
func NewWorkbookArchive(baseDir string, logger *zap.Logger) port.WorkbookArchive {
	return &WorkbookArchive{
		files:  NewLocalFileStorage(baseDir, logger),
		logger: logger,
	}
}

// Save stores the workbook of a version. A version is archived once; later
// saves of the same version are refused.
func (a *WorkbookArchive) Save(ctx context.Context, version int64, actor string, content []byte) (string, error) {
	if version <= 0 {
		return "", fmt.Errorf("invalid rule set version %d", version)
	}
	path := versionPath(version)
	if a.files.Exists(ctx, path) {
		return "", fmt.Errorf("workbook for version %d already archived", version)
	}

	if err := a.files.Save(ctx, path, content); err != nil {
		return "", err
	}

	// a small sidecar records who imported it
	who := unsafeActorChars.ReplaceAllString(actor, "_")
	if err := a.files.Save(ctx, fmt.Sprintf("rules/v%06d.actor", version), []byte(who)); err != nil {
		a.logger.Warn("Failed to record workbook importer", zap.Int64("version", version), zap.Error(err))
	}

	a.logger.Info("Rule workbook archived", zap.Int64("version", version), zap.Int("size", len(content)))
	return a.files.FullPath(path), nil
}

// Read returns the archived workbook of a version
func (a *WorkbookArchive) Read(ctx context.Context, version int64) ([]byte, error) {
	return a.files.Read(ctx, versionPath(version))
}

func versionPath(version int64) string {
	return fmt.Sprintf("rules/v%06d.xlsx", version)
}
