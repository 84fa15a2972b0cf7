package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type assessmentWriter interface {
	PutAssessment(ctx context.Context, a Assessment) error
}

// Seed reads a JSON array of assessments (config fields plus "questions")
// and upserts each one. It returns how many were written.
func Seed(ctx context.Context, w assessmentWriter, r io.Reader) (int, error) {
	var all []Assessment
	if err := json.NewDecoder(r).Decode(&all); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	for i, a := range all {
		if a.ID == "" {
			return i, fmt.Errorf("seed entry %d has no id", i)
		}
		if err := w.PutAssessment(ctx, a); err != nil {
			return i, fmt.Errorf("seed %s: %w", a.ID, err)
		}
	}
	return len(all), nil
}

func SeedFile(ctx context.Context, w assessmentWriter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Seed(ctx, w, f)
}
