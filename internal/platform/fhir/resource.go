// Package fhir holds the small set of FHIR R4 datatypes the terminology
// surface emits: codings, codeable concepts, operation outcomes, and the
// Parameters/Bundle envelopes used by the $lookup/$translate operations.
package fhir

// Extension is a FHIR extension. Only the value types the mapping surface
// emits are modelled.
type Extension struct {
	URL          string   `json:"url"`
	ValueCode    string   `json:"valueCode,omitempty"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
}

// Coding is a FHIR Coding datatype.
type Coding struct {
	System    string      `json:"system,omitempty"`
	Code      string      `json:"code,omitempty"`
	Display   string      `json:"display,omitempty"`
	Extension []Extension `json:"extension,omitempty"`
}

// CodeableConcept is a FHIR CodeableConcept datatype.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Meta is a FHIR resource Meta element.
type Meta struct {
	VersionID   string   `json:"versionId,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Profile     []string `json:"profile,omitempty"`
	Tag         []Coding `json:"tag,omitempty"`
}

// Parameter is one entry of a FHIR Parameters resource.
type Parameter struct {
	Name         string      `json:"name"`
	ValueString  string      `json:"valueString,omitempty"`
	ValueBoolean *bool       `json:"valueBoolean,omitempty"`
	ValueCode    string      `json:"valueCode,omitempty"`
	ValueDecimal *float64    `json:"valueDecimal,omitempty"`
	ValueCoding  *Coding     `json:"valueCoding,omitempty"`
	Part         []Parameter `json:"part,omitempty"`
}

// Parameters is a FHIR Parameters resource, the envelope for operation
// responses such as CodeSystem/$lookup and ConceptMap/$translate.
type Parameters struct {
	ResourceType string      `json:"resourceType"`
	Parameter    []Parameter `json:"parameter,omitempty"`
}

// NewParameters creates an empty Parameters resource.
func NewParameters() *Parameters {
	return &Parameters{ResourceType: "Parameters"}
}

// BundleEntry is one entry of a FHIR Bundle.
type BundleEntry struct {
	FullURL  string                 `json:"fullUrl,omitempty"`
	Resource map[string]interface{} `json:"resource,omitempty"`
}

// Bundle is a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Meta         *Meta         `json:"meta,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// NewCollectionBundle creates an empty Bundle of type collection.
func NewCollectionBundle() *Bundle {
	return &Bundle{ResourceType: "Bundle", Type: "collection"}
}
