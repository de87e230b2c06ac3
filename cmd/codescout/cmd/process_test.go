package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCmd_RequiresLocation(t *testing.T) {
	_, err := execute(t, "process")
	assert.Error(t, err)
}

func TestProcessCmd_ProcessesLocalRepository(t *testing.T) {
	repo := writeGoRepo(t)
	dirs := testDirs(t)

	// When: processing a local repository synchronously
	output, err := execute(t, append([]string{"process", repo}, dirs...)...)

	// Then: the run completes and the summary is printed
	require.NoError(t, err)
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "1/1 processed")
	assert.Contains(t, output, "ready=true")
}

func TestProcessCmd_ForceReprocesses(t *testing.T) {
	repo := writeGoRepo(t)
	dirs := testDirs(t)

	_, err := execute(t, append([]string{"process", repo}, dirs...)...)
	require.NoError(t, err)

	// When: reprocessing with --force against the same data dir
	output, err := execute(t, append([]string{"process", repo, "--force"}, dirs...)...)

	require.NoError(t, err)
	assert.Contains(t, output, "completed")
}

func TestProcessCmd_UnreachableSourceFails(t *testing.T) {
	dirs := testDirs(t)

	_, err := execute(t, append([]string{"process", "/does/not/exist"}, dirs...)...)
	assert.Error(t, err)
}

func TestStatusCmd_UnknownRepositoryFails(t *testing.T) {
	dirs := testDirs(t)

	_, err := execute(t, append([]string{"status", "/nowhere"}, dirs...)...)
	assert.Error(t, err)
}

func TestStatusCmd_AfterProcessing(t *testing.T) {
	repo := writeGoRepo(t)
	dirs := testDirs(t)

	_, err := execute(t, append([]string{"process", repo}, dirs...)...)
	require.NoError(t, err)

	// When: status is asked in a fresh invocation
	output, err := execute(t, append([]string{"status", repo, "--json"}, dirs...)...)

	// Then: the persisted record reports a searchable repository
	require.NoError(t, err)
	assert.Contains(t, output, `"status": "completed"`)
	assert.Contains(t, output, `"tool_ready": true`)
}

func TestListCmd_ShowsProcessedRepository(t *testing.T) {
	repo := writeGoRepo(t)
	dirs := testDirs(t)

	_, err := execute(t, append([]string{"process", repo}, dirs...)...)
	require.NoError(t, err)

	output, err := execute(t, append([]string{"list"}, dirs...)...)

	require.NoError(t, err)
	assert.Contains(t, output, repo)
	assert.Contains(t, output, "completed")
}

func TestListCmd_EmptyState(t *testing.T) {
	dirs := testDirs(t)

	output, err := execute(t, append([]string{"list"}, dirs...)...)

	require.NoError(t, err)
	assert.Contains(t, output, "No repositories registered")
}
