// Package contracts embeds the OpenAPI documents of the /api/v1 surface, one
// per domain, and loads them with kin-openapi for request validation.
package contracts

import (
	"context"
	"embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Document names, relative to this package.
const (
	Leases     = "leases.yaml"
	Payments   = "payments.yaml"
	Statistics = "statistics.yaml"
)

//go:embed *.yaml
var documents embed.FS

// Names lists every embedded document.
func Names() []string {
	return []string{Leases, Payments, Statistics}
}

// Load parses and validates the named document.
func Load(ctx context.Context, name string) (*openapi3.T, error) {
	data, err := documents.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read contract %s: %w", name, err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse contract %s: %w", name, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate contract %s: %w", name, err)
	}
	return doc, nil
}

// Raw returns the document bytes as embedded.
func Raw(name string) ([]byte, error) {
	return documents.ReadFile(name)
}
