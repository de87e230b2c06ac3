package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescout-dev/codescout/pkg/version"
)

func TestVersionCmd_Default(t *testing.T) {
	output, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, output, "codescout")
	assert.Contains(t, output, version.Version)
}

func TestVersionCmd_Short(t *testing.T) {
	output, err := execute(t, "version", "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", output)
}

func TestVersionCmd_JSON(t *testing.T) {
	output, err := execute(t, "version", "--json")

	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
