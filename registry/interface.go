package registry

// SchemaRegistry manages JSON schemas for the documents the registry accepts.
type SchemaRegistry interface {
	// Register adds a schema for a document name (e.g. "descriptor").
	// model can be a struct (to generate schema) or a JSON schema string/map.
	Register(name string, model any) error

	// GetSchema returns the JSON schema for a document name.
	GetSchema(name string) (string, bool)

	// List returns all registered document names.
	List() []string
}
