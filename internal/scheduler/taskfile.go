package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/crewly-ai/crewly/internal/config"
)

// TaskState is the lifecycle directory a task file lives in.
type TaskState string

const (
	TaskOpen       TaskState = "open"
	TaskInProgress TaskState = "in_progress"
	TaskDone       TaskState = "done"
	TaskBlocked    TaskState = "blocked"
)

var taskStates = []TaskState{TaskOpen, TaskInProgress, TaskDone, TaskBlocked}

// TaskHeader is the YAML front matter of a task file.
type TaskHeader struct {
	TargetRole   string `yaml:"targetRole"`
	StepID       string `yaml:"stepId"`
	DelayMinutes int    `yaml:"delayMinutes"`
	Conditional  string `yaml:"conditional"`
	Verification any    `yaml:"verification"`
}

// Task is a parsed task file. Milestone is the `m{N}_{slug}` directory name
// and State the lifecycle subdirectory it was found in.
type Task struct {
	Header    TaskHeader
	Body      string
	Path      string
	Milestone string
	State     TaskState
}

const frontMatterDelim = "---"

// ParseTaskFile reads a task file and splits its front matter from the
// markdown body.
func ParseTaskFile(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, fmt.Errorf("reading task %s: %w", path, err)
	}

	header, body, err := splitFrontMatter(string(data))
	if err != nil {
		return Task{}, fmt.Errorf("parsing task %s: %w", path, err)
	}

	var parsed TaskHeader
	if err := yaml.Unmarshal([]byte(header), &parsed); err != nil {
		return Task{}, fmt.Errorf("parsing task %s front matter: %w", path, err)
	}
	if parsed.Conditional == "" {
		parsed.Conditional = "none"
	}

	stateDir := filepath.Base(filepath.Dir(path))
	return Task{
		Header:    parsed,
		Body:      strings.TrimSpace(body),
		Path:      path,
		Milestone: filepath.Base(filepath.Dir(filepath.Dir(path))),
		State:     TaskState(stateDir),
	}, nil
}

// WriteTaskFile writes a task file with YAML front matter into the given
// milestone and state directory, creating directories as needed.
func WriteTaskFile(projectPath, milestone string, state TaskState, name string, header TaskHeader, body string) (string, error) {
	headerYAML, err := yaml.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("encoding task header: %w", err)
	}

	dir := filepath.Join(tasksRoot(projectPath), milestone, string(state))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	content := fmt.Sprintf("%s\n%s%s\n\n%s\n",
		frontMatterDelim, headerYAML, frontMatterDelim, strings.TrimSpace(body))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing task %s: %w", path, err)
	}
	return path, nil
}

// ListTasks returns every task under {project}/.crewly/tasks/, ordered by
// milestone then state then filename. Unparseable files are skipped.
func ListTasks(projectPath string) ([]Task, error) {
	root := tasksRoot(projectPath)
	milestones, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	sort.Slice(milestones, func(i, j int) bool { return milestones[i].Name() < milestones[j].Name() })

	var tasks []Task
	for _, milestone := range milestones {
		if !milestone.IsDir() {
			continue
		}
		for _, state := range taskStates {
			dir := filepath.Join(root, milestone.Name(), string(state))
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
					continue
				}
				task, err := ParseTaskFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					continue
				}
				tasks = append(tasks, task)
			}
		}
	}
	return tasks, nil
}

// MoveTask relocates a task file to another lifecycle directory within its
// milestone and returns the updated task.
func MoveTask(task Task, to TaskState) (Task, error) {
	dir := filepath.Join(filepath.Dir(filepath.Dir(task.Path)), string(to))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return task, fmt.Errorf("creating %s: %w", dir, err)
	}
	dest := filepath.Join(dir, filepath.Base(task.Path))
	if err := os.Rename(task.Path, dest); err != nil {
		return task, fmt.Errorf("moving task to %s: %w", dest, err)
	}
	task.Path = dest
	task.State = to
	return task, nil
}

func tasksRoot(projectPath string) string {
	return filepath.Join(config.ProjectDir(projectPath), "tasks")
}

// splitFrontMatter separates `--- ... ---` front matter from the body.
func splitFrontMatter(content string) (header, body string, err error) {
	trimmed := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(trimmed, frontMatterDelim+"\n") {
		return "", "", fmt.Errorf("missing front matter")
	}
	rest := trimmed[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return "", "", fmt.Errorf("unterminated front matter")
	}
	header = rest[:end+1]
	bodyStart := end + 1 + len(frontMatterDelim)
	if bodyStart < len(rest) && rest[bodyStart] == '\n' {
		bodyStart++
	}
	if bodyStart > len(rest) {
		bodyStart = len(rest)
	}
	body = rest[bodyStart:]
	return header, body, nil
}
