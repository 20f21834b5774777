package apiv1

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// SpecPath is the OpenAPI document served under /docs/api/v1, relative to the project root.
const SpecPath = "public/docs/v1/openapi.yml"

// LoadSpec reads and validates the OpenAPI document at path.
func LoadSpec(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return doc, nil
}

var fiberParam = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// SpecPathFor converts a fiber route path ("/clients/:id") to OpenAPI form ("/clients/{id}").
func SpecPathFor(route string) string {
	return fiberParam.ReplaceAllString(route, "{$1}")
}

// Documents reports whether doc describes method on the fiber route path.
func Documents(doc *openapi3.T, method, route string) bool {
	if doc == nil || doc.Paths == nil {
		return false
	}
	item := doc.Paths.Find(SpecPathFor(route))
	if item == nil {
		return false
	}
	return item.GetOperation(strings.ToUpper(method)) != nil
}
