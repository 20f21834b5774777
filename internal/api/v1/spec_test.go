package apiv1

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestSpec(t *testing.T) string {
	t.Helper()
	return filepath.Join("..", "..", "..", SpecPath)
}

func TestLoadSpecValidates(t *testing.T) {
	doc, err := LoadSpec(context.Background(), loadTestSpec(t))
	require.NoError(t, err)
	assert.Equal(t, "cryptogate API", doc.Info.Title)
	assert.Contains(t, doc.Components.Schemas, "UsageSummary")
}

func TestLoadSpecMissingFile(t *testing.T) {
	_, err := LoadSpec(context.Background(), "does-not-exist.yml")
	assert.Error(t, err)
}

func TestSpecPathFor(t *testing.T) {
	assert.Equal(t, "/admin/clients/{id}/usage", SpecPathFor("/admin/clients/:id/usage"))
	assert.Equal(t, "/api/v1/client/features", SpecPathFor("/api/v1/client/features"))
}

func TestDocuments(t *testing.T) {
	doc, err := LoadSpec(context.Background(), loadTestSpec(t))
	require.NoError(t, err)

	assert.True(t, Documents(doc, "post", "/api/v1/webhooks/payments"))
	assert.True(t, Documents(doc, "PUT", "/admin/packages/:id"))
	assert.False(t, Documents(doc, "DELETE", "/admin/packages/:id"))
	assert.False(t, Documents(doc, "GET", "/admin/unknown"))
	assert.False(t, Documents(nil, "GET", "/healthz"))
}
