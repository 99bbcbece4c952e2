package scheduler

import (
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Info is the run metadata logged under mainevent/info when a block
// starts.
type Info struct {
	RunID       string    `json:"run_id"`
	Task        string    `json:"task"`
	TaskVersion string    `json:"task_version,omitempty"`
	Block       string    `json:"block"`
	Host        string    `json:"host"`
	Started     time.Time `json:"started"`
	Version     string    `json:"version"`
}

// RunIDGenerator generates run ids.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 run ids, so that run ids
// sort by start time.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewInfo fills in run metadata for a block starting at now.
func NewInfo(gen RunIDGenerator, task, taskVersion, block string, now time.Time) Info {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return Info{
		RunID:       gen.Generate(),
		Task:        task,
		TaskVersion: taskVersion,
		Block:       block,
		Host:        host,
		Started:     now,
		Version:     moduleVersion(),
	}
}

func moduleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
