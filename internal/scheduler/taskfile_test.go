package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskFileRoundTrip(t *testing.T) {
	project := t.TempDir()

	path, err := WriteTaskFile(project, "m1_setup", TaskOpen, "010_bootstrap.md",
		TaskHeader{
			TargetRole:   "developer",
			StepID:       "m1-010",
			DelayMinutes: 15,
			Conditional:  "none",
		}, "Set up the repository.\n\nRun the linters.")
	require.NoError(t, err)

	task, err := ParseTaskFile(path)
	require.NoError(t, err)
	assert.Equal(t, "developer", task.Header.TargetRole)
	assert.Equal(t, "m1-010", task.Header.StepID)
	assert.Equal(t, 15, task.Header.DelayMinutes)
	assert.Equal(t, "Set up the repository.\n\nRun the linters.", task.Body)
	assert.Equal(t, "m1_setup", task.Milestone)
	assert.Equal(t, TaskOpen, task.State)
}

func TestParseTaskFileDefaultsConditional(t *testing.T) {
	project := t.TempDir()
	path, err := WriteTaskFile(project, "m1_setup", TaskOpen, "010.md",
		TaskHeader{TargetRole: "developer", StepID: "s1"}, "Body.")
	require.NoError(t, err)

	task, err := ParseTaskFile(path)
	require.NoError(t, err)
	assert.Equal(t, "none", task.Header.Conditional)
}

func TestSplitFrontMatter(t *testing.T) {
	header, body, err := splitFrontMatter("---\ntargetRole: dev\n---\n\nThe body.\n")
	require.NoError(t, err)
	assert.Equal(t, "targetRole: dev\n", header)
	assert.Equal(t, "\nThe body.\n", body)
}

func TestSplitFrontMatterStripsBOM(t *testing.T) {
	_, _, err := splitFrontMatter("\ufeff---\nstepId: s1\n---\nbody")
	assert.NoError(t, err)
}

func TestSplitFrontMatterErrors(t *testing.T) {
	_, _, err := splitFrontMatter("no front matter here")
	assert.Error(t, err)

	_, _, err = splitFrontMatter("---\nstepId: s1\nnever closed")
	assert.Error(t, err)
}

func TestSplitFrontMatterEndsAtDelimiter(t *testing.T) {
	header, body, err := splitFrontMatter("---\nstepId: s1\n---")
	require.NoError(t, err)
	assert.Equal(t, "stepId: s1\n", header)
	assert.Empty(t, body)
}

func TestListTasksOrdering(t *testing.T) {
	project := t.TempDir()

	write := func(milestone string, state TaskState, name, step string) {
		t.Helper()
		_, err := WriteTaskFile(project, milestone, state, name,
			TaskHeader{TargetRole: "developer", StepID: step}, "Body.")
		require.NoError(t, err)
	}
	write("m2_polish", TaskOpen, "010.md", "m2-010")
	write("m1_setup", TaskDone, "010.md", "m1-done")
	write("m1_setup", TaskOpen, "020.md", "m1-020")
	write("m1_setup", TaskOpen, "010.md", "m1-010")

	// Clutter that must be skipped.
	openDir := filepath.Join(project, ".crewly", "tasks", "m1_setup", "open")
	require.NoError(t, os.WriteFile(filepath.Join(openDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(openDir, "broken.md"), []byte("no front matter"), 0o644))

	tasks, err := ListTasks(project)
	require.NoError(t, err)

	var steps []string
	for _, task := range tasks {
		steps = append(steps, task.Header.StepID)
	}
	assert.Equal(t, []string{"m1-010", "m1-020", "m1-done", "m2-010"}, steps)
}

func TestListTasksMissingRoot(t *testing.T) {
	tasks, err := ListTasks(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMoveTask(t *testing.T) {
	project := t.TempDir()

	path, err := WriteTaskFile(project, "m1_setup", TaskOpen, "010.md",
		TaskHeader{TargetRole: "developer", StepID: "m1-010"}, "Body.")
	require.NoError(t, err)

	task, err := ParseTaskFile(path)
	require.NoError(t, err)

	moved, err := MoveTask(task, TaskInProgress)
	require.NoError(t, err)
	assert.Equal(t, TaskInProgress, moved.State)
	assert.FileExists(t, moved.Path)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	tasks, err := ListTasks(project)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskInProgress, tasks[0].State)
}
