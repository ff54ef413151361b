// Package seed loads the bundled NAMASTE sample dataset into the record
// store. It exists for demos and development; production data arrives via
// the ingest endpoint.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/internal/domain/record"
)

//go:embed namaste_sample.json
var namasteSample []byte

// Records parses the embedded sample dataset.
func Records() ([]*record.TerminologyRecord, error) {
	var records []*record.TerminologyRecord
	if err := json.Unmarshal(namasteSample, &records); err != nil {
		return nil, fmt.Errorf("parse embedded sample dataset: %w", err)
	}
	return records, nil
}

// Load ingests the sample dataset through the record service. Records that
// already exist are skipped, so Load is safe to run on every start.
func Load(ctx context.Context, svc *record.Service, logger zerolog.Logger) error {
	records, err := Records()
	if err != nil {
		return err
	}

	results := svc.Ingest(ctx, records)
	loaded := 0
	for _, r := range results {
		if r.OK {
			loaded++
		}
	}
	logger.Info().Int("loaded", loaded).Int("total", len(records)).Msg("sample dataset seeded")
	return nil
}
