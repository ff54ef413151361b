// Package bundle assembles dual-coded FHIR payloads: a local terminology
// record plus its cross-system mappings, shaped as a Condition inside a
// collection Bundle so downstream systems receive both code systems in one
// CodeableConcept.
package bundle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/platform/fhir"
	"github.com/termbridge/termbridge/pkg/errs"
)

// ConfidenceExtensionURL tags each mapped coding with the confidence tier of
// the mapping entry it came from.
const ConfidenceExtensionURL = "http://termbridge.dev/fhir/StructureDefinition/mapping-confidence"

// Bundle meta tags describing whether the payload carries any cross-system
// codings.
const (
	TagSystem   = "http://termbridge.dev/fhir/CodeSystem/bundle-status"
	TagMapped   = "mapped"
	TagUnmapped = "unmapped"
)

// Options tune a single build.
type Options struct {
	// RequireMapping rejects the build with errs.ErrInvalidInput when the
	// record has no usable mappings, instead of emitting an unmapped bundle.
	RequireMapping bool
}

// Build shapes a record and its mapping entries into a collection Bundle
// holding one dual-coded Condition. Entries without a target code (UNMAPPED
// placeholders) contribute no coding. The build is pure: it reads nothing
// and stores nothing.
func Build(rec *record.TerminologyRecord, entries []*mapping.Entry, opts Options) (*fhir.Bundle, error) {
	if rec == nil {
		return nil, fmt.Errorf("record is required: %w", errs.ErrInvalidInput)
	}

	codings := []fhir.Coding{{
		System:  rec.System,
		Code:    rec.Code,
		Display: rec.Display,
	}}
	for _, e := range entries {
		if e.TargetCode == nil || *e.TargetCode == "" {
			continue
		}
		codings = append(codings, fhir.Coding{
			System:  e.TargetSystem,
			Code:    *e.TargetCode,
			Display: e.Display,
			Extension: []fhir.Extension{{
				URL:       ConfidenceExtensionURL,
				ValueCode: string(e.Confidence),
			}},
		})
	}

	mapped := len(codings) > 1
	if opts.RequireMapping && !mapped {
		return nil, fmt.Errorf("record %q has no cross-system mappings: %w", rec.Code, errs.ErrInvalidInput)
	}

	condition := map[string]interface{}{
		"resourceType": "Condition",
		"id":           uuid.NewString(),
		"code": fhir.CodeableConcept{
			Coding: codings,
			Text:   rec.Display,
		},
		"clinicalStatus": fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System: "http://terminology.hl7.org/CodeSystem/condition-clinical",
				Code:   "active",
			}},
		},
	}
	if rec.Description != "" {
		condition["note"] = []map[string]interface{}{{"text": rec.Description}}
	}

	tag := TagUnmapped
	if mapped {
		tag = TagMapped
	}

	b := fhir.NewCollectionBundle()
	b.Meta = &fhir.Meta{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Tag:         []fhir.Coding{{System: TagSystem, Code: tag}},
	}
	b.Entry = []fhir.BundleEntry{{
		FullURL:  "urn:uuid:" + condition["id"].(string),
		Resource: condition,
	}}
	return b, nil
}
