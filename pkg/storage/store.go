package storage

import (
	"context"
	"fmt"

	"github.com/InsaneAbhishek/inventoryai/pkg/dataset"
)

// Stage identifies a pipeline artifact kind.
type Stage string

const (
	StageRaw          Stage = "raw"
	StagePreprocessed Stage = "preprocessed"
	StageFeatures     Stage = "features"
	StageForecast     Stage = "forecast"
)

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageRaw, StagePreprocessed, StageFeatures, StageForecast:
		return Stage(s), nil
	default:
		return "", fmt.Errorf("unknown stage %q", s)
	}
}

// Store persists pipeline artifacts per user and stage. Put replaces any
// previous artifact for the same user and stage.
type Store interface {
	Put(ctx context.Context, user string, stage Stage, records []dataset.Record) error
	Get(ctx context.Context, user string, stage Stage) ([]dataset.Record, bool, error)
}

// validUser reports whether a user identifier is safe to use in store keys.
func validUser(user string) bool {
	if user == "" {
		return false
	}
	for _, c := range user {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
