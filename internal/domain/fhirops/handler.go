// Package fhirops exposes the terminology engine over FHIR R4 operations:
// CodeSystem/$lookup, ConceptMap/$translate, dual-coded Bundle retrieval,
// and the server CapabilityStatement.
package fhirops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/internal/domain/bundle"
	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/platform/fhir"
	"github.com/termbridge/termbridge/pkg/errs"
)

// Handler serves the /fhir surface.
type Handler struct {
	records  *record.Service
	mappings *mapping.Service
}

// NewHandler creates a new FHIR operations handler.
func NewHandler(records *record.Service, mappings *mapping.Service) *Handler {
	return &Handler{records: records, mappings: mappings}
}

// RegisterRoutes registers FHIR routes on the FHIR group.
func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/metadata", h.Metadata)
	fhirGroup.GET("/CodeSystem/$lookup", h.Lookup)
	fhirGroup.POST("/CodeSystem/$lookup", h.LookupPost)
	fhirGroup.GET("/ConceptMap/$translate", h.Translate)
	fhirGroup.POST("/ConceptMap/$translate", h.TranslatePost)
	fhirGroup.GET("/Bundle/:sourceCode", h.Bundle)
}

// outcome renders an error as a FHIR OperationOutcome with the status mapped
// from the error taxonomy.
func outcome(c echo.Context, err error) error {
	status := errs.HTTPStatus(err)
	return c.JSON(status, fhir.ErrorOutcome(status, err.Error()))
}

func requiredParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest,
		fhir.NewOperationOutcome("error", "required", "Parameter '"+name+"' is required"))
}

// Metadata handles GET /fhir/metadata with a minimal CapabilityStatement.
func (h *Handler) Metadata(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"date":         time.Now().UTC().Format(time.RFC3339),
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"json"},
		"rest": []map[string]interface{}{{
			"mode": "server",
			"resource": []map[string]interface{}{
				{"type": "CodeSystem", "operation": []map[string]string{{"name": "lookup", "definition": "http://hl7.org/fhir/OperationDefinition/CodeSystem-lookup"}}},
				{"type": "ConceptMap", "operation": []map[string]string{{"name": "translate", "definition": "http://hl7.org/fhir/OperationDefinition/ConceptMap-translate"}}},
				{"type": "Bundle", "interaction": []map[string]string{{"code": "read"}}},
			},
		}},
	})
}

// Lookup handles GET /fhir/CodeSystem/$lookup?code=...
func (h *Handler) Lookup(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return requiredParam(c, "code")
	}
	return h.doLookup(c, code)
}

// LookupPost handles POST /fhir/CodeSystem/$lookup with a Parameters body.
func (h *Handler) LookupPost(c echo.Context) error {
	var params fhir.Parameters
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome("error", "structure", "Invalid Parameters resource"))
	}
	var code string
	for _, p := range params.Parameter {
		if p.Name == "code" {
			code = p.ValueCode
			if code == "" {
				code = p.ValueString
			}
		}
	}
	if code == "" {
		return requiredParam(c, "code")
	}
	return h.doLookup(c, code)
}

func (h *Handler) doLookup(c echo.Context, code string) error {
	rec, err := h.records.Get(c.Request().Context(), code)
	if err != nil {
		return outcome(c, err)
	}

	out := fhir.NewParameters()
	out.Parameter = append(out.Parameter,
		fhir.Parameter{Name: "name", ValueString: rec.System},
		fhir.Parameter{Name: "display", ValueString: rec.Display},
	)
	for _, syn := range rec.Synonyms {
		out.Parameter = append(out.Parameter, fhir.Parameter{
			Name: "designation",
			Part: []fhir.Parameter{
				{Name: "use", ValueCoding: &fhir.Coding{
					System: "http://terminology.hl7.org/CodeSystem/designation-usage",
					Code:   "display",
				}},
				{Name: "value", ValueString: syn},
			},
		})
	}
	if rec.Category != "" {
		out.Parameter = append(out.Parameter, fhir.Parameter{
			Name: "property",
			Part: []fhir.Parameter{
				{Name: "code", ValueCode: "category"},
				{Name: "value", ValueString: rec.Category},
			},
		})
	}
	if rec.Description != "" {
		out.Parameter = append(out.Parameter, fhir.Parameter{
			Name: "property",
			Part: []fhir.Parameter{
				{Name: "code", ValueCode: "definition"},
				{Name: "value", ValueString: rec.Description},
			},
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Translate handles GET /fhir/ConceptMap/$translate?code=...&targetsystem=.
func (h *Handler) Translate(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return requiredParam(c, "code")
	}
	return h.doTranslate(c, code, c.QueryParam("targetsystem"))
}

// TranslatePost handles POST /fhir/ConceptMap/$translate with a Parameters body.
func (h *Handler) TranslatePost(c echo.Context) error {
	var params fhir.Parameters
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome("error", "structure", "Invalid Parameters resource"))
	}
	var code, targetSystem string
	for _, p := range params.Parameter {
		switch p.Name {
		case "code":
			code = p.ValueCode
			if code == "" {
				code = p.ValueString
			}
		case "targetsystem":
			targetSystem = p.ValueString
		}
	}
	if code == "" {
		return requiredParam(c, "code")
	}
	return h.doTranslate(c, code, targetSystem)
}

// doTranslate reads the mapping table for the source code and renders the
// standard $translate Parameters response. Entries without a target code
// never become matches.
func (h *Handler) doTranslate(c echo.Context, code, targetSystem string) error {
	entries, err := h.mappings.GetMappings(c.Request().Context(), code)
	if err != nil {
		return outcome(c, err)
	}

	out := fhir.NewParameters()
	var matches []fhir.Parameter
	for _, e := range entries {
		if targetSystem != "" && e.TargetSystem != targetSystem {
			continue
		}
		if e.TargetCode == nil || *e.TargetCode == "" {
			continue
		}
		matches = append(matches, fhir.Parameter{
			Name: "match",
			Part: []fhir.Parameter{
				{Name: "equivalence", ValueCode: equivalenceFor(e.Confidence)},
				{Name: "concept", ValueCoding: &fhir.Coding{
					System:  e.TargetSystem,
					Code:    *e.TargetCode,
					Display: e.Display,
				}},
			},
		})
	}

	result := len(matches) > 0
	message := "No mapping found for '" + code + "'"
	if result {
		message = "Matches found for '" + code + "'"
	}
	out.Parameter = append(out.Parameter,
		fhir.Parameter{Name: "result", ValueBoolean: &result},
		fhir.Parameter{Name: "message", ValueString: message},
	)
	out.Parameter = append(out.Parameter, matches...)
	return c.JSON(http.StatusOK, out)
}

// equivalenceFor maps a confidence tier to a FHIR ConceptMap equivalence code.
func equivalenceFor(conf mapping.Confidence) string {
	switch conf {
	case mapping.ConfidenceExact:
		return "equivalent"
	case mapping.ConfidenceProbable, mapping.ConfidenceUncertain:
		return "inexact"
	default:
		return "unmatched"
	}
}

// Bundle handles GET /fhir/Bundle/:sourceCode?requireMapping=true — the
// dual-coded payload for one local record.
func (h *Handler) Bundle(c echo.Context) error {
	code := c.Param("sourceCode")
	ctx := c.Request().Context()

	rec, err := h.records.Get(ctx, code)
	if err != nil {
		return outcome(c, err)
	}
	entries, err := h.mappings.GetMappings(ctx, code)
	if err != nil {
		return outcome(c, err)
	}

	requireMapping, _ := strconv.ParseBool(c.QueryParam("requireMapping"))
	b, err := bundle.Build(rec, entries, bundle.Options{RequireMapping: requireMapping})
	if err != nil {
		return outcome(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
