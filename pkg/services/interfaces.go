// Package services sequences split loading and the cross-split checks.
package services

import (
	"context"

	"github.com/TFMV/splitcheck/pkg/models"
)

// SplitLoader loads one split, absorbing every failure into the result.
type SplitLoader interface {
	LoadSplit(ctx context.Context, datasetID string, split models.Split, revision string) models.LoadResult
}

// SplitRunner checks every split of a dataset.
type SplitRunner interface {
	Run(ctx context.Context, datasetID, revision string, splits []models.Split) *models.RunSummary
}
