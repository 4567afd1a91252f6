package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	apperrors "github.com/ONEcampaign/interest-rates/internal/errors"
)

// UpdateKeyNumbers merges values into the JSON object stored at filePath,
// creating it when missing. Keys not in values are kept.
func (w *CSVWriter) UpdateKeyNumbers(ctx context.Context, filePath string, values map[string]any) error {
	fullPath := w.paths.Resolve(filePath)

	data := make(map[string]any)
	raw, err := os.ReadFile(fullPath)
	switch {
	case err == nil:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &data); err != nil {
				return apperrors.NewParsingError("decode "+filePath, err)
			}
		}
	case os.IsNotExist(err):
	default:
		return apperrors.NewStorageError("read "+filePath, err)
	}

	keys := make([]string, 0, len(values))
	for k, v := range values {
		data[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, out, 0644); err != nil {
		return apperrors.NewStorageError("write "+filePath, err)
	}

	w.track(fullPath)
	w.metrics.RecordRows(ctx, filepath.Base(fullPath), len(values))
	w.logger.InfoContext(ctx, "Key numbers updated",
		slog.String("file_path", filePath),
		slog.Any("keys", keys))
	return nil
}
