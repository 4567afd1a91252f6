// Package shared provides small helpers used by several pipelines that do not
// belong to any single dataset.
//
// The testutil subpackage holds test helpers: a capturing slog handler and
// fixtures for the debt datasets.
package shared
