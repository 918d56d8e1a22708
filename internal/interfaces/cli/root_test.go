package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["disease"])
	assert.True(t, names["target"])
}

func TestNewRootCommand_Flags(t *testing.T) {
	root := NewRootCommand()
	pf := root.PersistentFlags()

	for _, name := range []string{"config", "log-level", "verbose", "output-dir"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag %s", name)
	}
}

func TestGetCLIContext_Uninitialized(t *testing.T) {
	cmd := &cobra.Command{}
	_, err := getCLIContext(cmd)
	assert.Error(t, err)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	_, err := initConfig(&rootOptions{configPath: "/does/not/exist.yaml"})
	require.Error(t, err)
}
