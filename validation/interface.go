package validation

// DocumentValidator checks decoded JSON documents against registered schemas.
type DocumentValidator interface {
	// Validate checks value, as produced by json.Unmarshal into any, against
	// the schema registered for document. Violations are reported as a
	// *DocumentError.
	Validate(document string, value any) error
}
