package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaEmbeddingColumnTracksConfiguredDimensions(t *testing.T) {
	ddl := strings.Join(schemaStatements(512), "\n")
	require.Contains(t, ddl, "VECTOR(512)")
	require.NotContains(t, ddl, "VECTOR(384)")

	ddl = strings.Join(schemaStatements(384), "\n")
	require.Contains(t, ddl, "VECTOR(384)")
}
