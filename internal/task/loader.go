package task

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/codequest/internal/domain"
)

//go:embed builtin
var builtinFS embed.FS

// PackFile is the YAML structure of pack.yaml
type PackFile struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Tasks       []string `yaml:"tasks"`
}

// TaskFile is the YAML structure of a task definition
type TaskFile struct {
	ID            string            `yaml:"id"`
	Title         string            `yaml:"title"`
	Description   string            `yaml:"description"`
	Instructions  string            `yaml:"instructions"`
	Difficulty    string            `yaml:"difficulty"`
	Language      string            `yaml:"language"`
	XPReward      int               `yaml:"xp_reward"`
	EstimatedTime int               `yaml:"estimated_time"`
	EntryPoint    string            `yaml:"entry_point"`
	Tags          []string          `yaml:"tags"`
	Starter       map[string]string `yaml:"starter"`
	Hints         []string          `yaml:"hints"`
	TestCases     []struct {
		ID          string `yaml:"id"`
		Input       string `yaml:"input"`
		Expected    string `yaml:"expected"`
		Description string `yaml:"description"`
		Hidden      bool   `yaml:"hidden"`
	} `yaml:"test_cases"`
}

// Pack is a named collection of tasks
type Pack struct {
	ID          string
	Name        string
	Version     string
	Description string
	TaskIDs     []string
}

// Loader reads task packs from a filesystem laid out as <pack>/pack.yaml
// plus one <task>.yaml per entry
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a loader over a directory on disk
func NewLoader(basePath string) *Loader {
	return &Loader{fsys: os.DirFS(basePath)}
}

// NewFSLoader creates a loader over an arbitrary filesystem
func NewFSLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// BuiltinLoader returns a loader for the packs compiled into the binary
func BuiltinLoader() *Loader {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(fmt.Sprintf("builtin tasks: %v", err))
	}
	return &Loader{fsys: sub}
}

// LoadPack reads a pack manifest
func (l *Loader) LoadPack(packID string) (*Pack, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(packID, "pack.yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPackNotFound, packID)
		}
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var pf PackFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse pack file: %w", err)
	}
	if pf.ID == "" {
		pf.ID = packID
	}

	return &Pack{
		ID:          pf.ID,
		Name:        pf.Name,
		Version:     pf.Version,
		Description: pf.Description,
		TaskIDs:     pf.Tasks,
	}, nil
}

// LoadTask reads one task definition from a pack
func (l *Loader) LoadTask(packID, slug string) (*domain.Task, error) {
	data, err := fs.ReadFile(l.fsys, path.Join(packID, slug+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	return tf.toDomain(slug)
}

func (tf *TaskFile) toDomain(slug string) (*domain.Task, error) {
	lang := domain.LanguageJavaScript
	if tf.Language != "" {
		parsed, err := domain.ParseLanguage(tf.Language)
		if err != nil {
			return nil, err
		}
		lang = parsed
	}

	t := &domain.Task{
		ID:            tf.ID,
		Title:         tf.Title,
		Description:   tf.Description,
		Instructions:  tf.Instructions,
		Difficulty:    domain.Difficulty(tf.Difficulty),
		Language:      lang,
		XPReward:      tf.XPReward,
		EstimatedTime: tf.EstimatedTime,
		EntryPoint:    tf.EntryPoint,
		Tags:          tf.Tags,
		Hints:         tf.Hints,
		StarterCode:   make(map[domain.Language]string, len(tf.Starter)),
		Active:        true,
	}
	if t.ID == "" {
		t.ID = slug
	}
	for name, code := range tf.Starter {
		l, err := domain.ParseLanguage(name)
		if err != nil {
			return nil, fmt.Errorf("starter code: %w", err)
		}
		t.StarterCode[l] = code
	}
	for i, tc := range tf.TestCases {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", t.ID, i+1)
		}
		t.TestCases = append(t.TestCases, domain.TestCase{
			ID:          id,
			Input:       tc.Input,
			Expected:    tc.Expected,
			Description: tc.Description,
			Hidden:      tc.Hidden,
		})
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return t, nil
}

// LoadAllPacks loads every directory that contains a pack.yaml
func (l *Loader) LoadAllPacks() ([]*Pack, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read tasks directory: %w", err)
	}

	var packs []*Pack
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := fs.Stat(l.fsys, path.Join(entry.Name(), "pack.yaml")); err != nil {
			continue
		}
		pack, err := l.LoadPack(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

// LoadPackTasks loads every task listed by the pack in directory packDir
func (l *Loader) LoadPackTasks(packDir string) ([]*domain.Task, error) {
	pack, err := l.LoadPack(packDir)
	if err != nil {
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(pack.TaskIDs))
	for _, slug := range pack.TaskIDs {
		t, err := l.LoadTask(packDir, slug)
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", slug, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// LoadAll loads the tasks of every pack
func (l *Loader) LoadAll() ([]*domain.Task, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read tasks directory: %w", err)
	}

	var tasks []*domain.Task
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := fs.Stat(l.fsys, path.Join(entry.Name(), "pack.yaml")); err != nil {
			continue
		}
		packTasks, err := l.LoadPackTasks(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		tasks = append(tasks, packTasks...)
	}
	return tasks, nil
}
