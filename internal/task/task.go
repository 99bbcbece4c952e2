// Package task loads experiment task definitions.
//
// A task is a YAML file listing named blocks, each with an action tree:
//
//	name: stroop
//	version: "1.2"
//	config: {volume: 0.8}
//	blocks:
//	  - name: practice
//	    tree:
//	      seq:
//	        - counter: {from: 2}
//	        - stream: {src: intro.mp4, width: 640}
//	  - name: main
//	    config: {interrupt_key: Q}
//	    tree: {key_logger: {group: answers}}
//
// Block configuration is merged over the task configuration and then
// resolved against the config schema.
package task

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/config"
	"github.com/roach88/cogtask/internal/taskerr"
)

// FileName is the task file looked up when Load is given a directory.
const FileName = "task.yaml"

// DescriptionFile holds the description of tasks that do not inline one.
const DescriptionFile = "description.txt"

// Task is a loaded, validated task.
type Task struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Config      config.Raw `yaml:"config"`
	Blocks      []*Block   `yaml:"blocks"`

	dir    string
	config config.Config
}

// Block is one runnable block of a task.
type Block struct {
	Name   string      `yaml:"name"`
	Config config.Raw  `yaml:"config"`
	Tree   action.Spec `yaml:"tree"`

	config config.Config
}

// Load reads and validates the task at path. path is either a task file or
// a directory containing task.yaml. Resource paths of the task resolve
// against the task file's directory.
func Load(path string) (*Task, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindTaskDefinition, err, "open task")
	}
	if info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindTaskDefinition, err, "read task")
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes and validates a task. dir is the task root directory.
func Parse(data []byte, dir string) (*Task, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Task
	if err := dec.Decode(&t); err != nil {
		var te *taskerr.Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, taskerr.Wrap(taskerr.KindTaskDefinition, err, "decode task")
	}
	t.dir = dir

	if err := t.init(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Task) init() error {
	if t.Name == "" {
		return taskerr.New(taskerr.KindTaskDefinition, "task name cannot be empty")
	}
	if len(t.Blocks) == 0 {
		return taskerr.New(taskerr.KindTaskDefinition, "task %q has no blocks", t.Name)
	}

	cfg, err := config.Resolve(t.Config)
	if err != nil {
		return err
	}
	t.config = cfg

	seen := make(map[string]bool, len(t.Blocks))
	for i, b := range t.Blocks {
		if b.Name == "" {
			return taskerr.New(taskerr.KindTaskDefinition, "block %d has no name", i)
		}
		if seen[b.Name] {
			return taskerr.New(taskerr.KindTaskDefinition,
				"block names have to be unique within a task: %q is repeated", b.Name)
		}
		seen[b.Name] = true

		if err := b.init(t.Config); err != nil {
			return fmt.Errorf("block %q: %w", b.Name, err)
		}
	}

	if t.Description == "" {
		path := filepath.Join(t.dir, DescriptionFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return taskerr.Wrap(taskerr.KindTaskDefinition, err, "task has no description and %s is unreadable", DescriptionFile)
		}
		t.Description = string(data)
	}
	return nil
}

func (b *Block) init(base config.Raw) error {
	if b.Tree.Action == nil {
		return taskerr.New(taskerr.KindTaskDefinition, "block has no tree")
	}
	cfg, err := config.Resolve(config.Merge(base, b.Config))
	if err != nil {
		return err
	}
	b.config = cfg
	return b.Tree.Action.Init()
}

// Dir returns the task root directory.
func (t *Task) Dir() string { return t.dir }

// Title returns "name (version)".
func (t *Task) Title() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Version)
}

// ResolvedConfig returns the task-level configuration.
func (t *Task) ResolvedConfig() config.Config { return t.config }

// Block returns block i.
func (t *Task) Block(i int) *Block { return t.Blocks[i] }

// Labels returns the block names in order.
func (t *Task) Labels() []string {
	out := make([]string, len(t.Blocks))
	for i, b := range t.Blocks {
		out[i] = b.Name
	}
	return out
}

// Find returns the index of the block named name.
func (t *Task) Find(name string) (int, error) {
	for i, b := range t.Blocks {
		if b.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("task %q has no block %q", t.Name, name)
}

// Label returns the block name.
func (b *Block) Label() string { return b.Name }

// ResolvedConfig returns the block configuration, merged over the task's.
func (b *Block) ResolvedConfig() config.Config { return b.config }

// Root returns the static action tree.
func (b *Block) Root() action.Action { return b.Tree.Action }

// Resources returns the resource paths the block binds to.
func (b *Block) Resources() []string { return b.Tree.Action.Resources() }
