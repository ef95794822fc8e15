package memory

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crewly-ai/crewly/internal/config"
)

// Per-project memory files under {project}/.crewly/.
const (
	patternsFile   = "patterns.md"
	gotchasFile    = "gotchas.md"
	whatWorkedFile = "what_worked.md"
	whatFailedFile = "what_failed.md"
)

// AppendPattern records a codebase pattern worth repeating.
func (s *Store) AppendPattern(projectPath, pattern string) error {
	path := filepath.Join(config.ProjectDir(projectPath), patternsFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(pattern)))
}

// AppendGotcha records a project pitfall.
func (s *Store) AppendGotcha(projectPath, gotcha string) error {
	path := filepath.Join(config.ProjectDir(projectPath), gotchasFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(gotcha)))
}

// RecordWhatWorked appends to the project's learning log of approaches that
// succeeded.
func (s *Store) RecordWhatWorked(projectPath, entry string) error {
	path := filepath.Join(config.ProjectDir(projectPath), "learning", whatWorkedFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(entry)))
}

// RecordWhatFailed appends to the project's learning log of approaches that
// did not.
func (s *Store) RecordWhatFailed(projectPath, entry string) error {
	path := filepath.Join(config.ProjectDir(projectPath), "learning", whatFailedFile)
	return appendFile(path, fmt.Sprintf("- %s\n", strings.TrimSpace(entry)))
}

// ProjectContext assembles the project's patterns and gotchas into one
// document. Missing files are skipped.
func (s *Store) ProjectContext(projectPath string) string {
	dir := config.ProjectDir(projectPath)
	var sections []string
	for _, part := range []struct{ title, file string }{
		{"Patterns", patternsFile},
		{"Gotchas", gotchasFile},
	} {
		content := strings.TrimSpace(readFile(filepath.Join(dir, part.file)))
		if content == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("### %s\n%s", part.title, content))
	}
	return strings.Join(sections, "\n\n")
}
