package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRootHintsCompiledIn(t *testing.T) {
	rh, err := ParseRootHints(CompiledInRootHintsZone)
	require.NoError(t, err)
	assert.Len(t, rh.NS, 13, "IANA publishes thirteen root server names")
	assert.NotEmpty(t, rh.Glue["a.root-servers.net."])
}

func TestNewEnvPrimesRootHints(t *testing.T) {
	env := NewEnv(0, 0, nil)
	require.NotNil(t, env.RootHints)
	assert.NotEmpty(t, env.RootHints.NS)
}
