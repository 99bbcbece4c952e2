// Package config resolves the configuration value bag of a task and its
// blocks.
//
// Raw configuration comes from YAML maps. It is validated and defaulted
// against an embedded CUE definition (schema.cue), so unknown keys and
// out-of-range values are rejected before any block starts.
package config

import (
	_ "embed"
	"fmt"
	"maps"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/cogtask/internal/taskerr"
)

//go:embed schema.cue
var schemaCUE string

// Config is the resolved configuration of one block.
type Config struct {
	Background        string  `json:"background" yaml:"background"`
	Volume            float32 `json:"volume" yaml:"volume"`
	InterruptKey      string  `json:"interrupt_key" yaml:"interrupt_key"`
	InterruptWindowMS int     `json:"interrupt_window_ms" yaml:"interrupt_window_ms"`
	BlocksPerRow      int     `json:"blocks_per_row" yaml:"blocks_per_row"`
	FrameRate         int     `json:"frame_rate" yaml:"frame_rate"`
	DB                string  `json:"db" yaml:"db"`
}

// Raw is an unvalidated configuration map as decoded from YAML.
type Raw map[string]any

// Default returns the configuration with every field at its default.
func Default() Config {
	c, err := Resolve(nil)
	if err != nil {
		panic("config: embedded schema rejects empty config: " + err.Error())
	}
	return c
}

// Resolve validates raw against the schema and fills in defaults.
// Errors are task definition errors.
func Resolve(raw Raw) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, taskerr.Wrap(taskerr.KindInternal, err, "compile config schema")
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	if raw == nil {
		raw = Raw{}
	}
	v := def.Unify(ctx.Encode(map[string]any(raw)))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, taskerr.New(taskerr.KindTaskDefinition, "invalid config: %s", firstError(err))
	}

	var c Config
	if err := v.Decode(&c); err != nil {
		return Config{}, taskerr.Wrap(taskerr.KindTaskDefinition, err, "decode config")
	}
	return c, nil
}

// firstError renders the first CUE error with its path.
func firstError(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	first := errs[0]
	format, args := first.Msg()
	if path := first.Path(); len(path) > 0 {
		return fmt.Sprintf("%s: %s", strings.Join(path, "."), fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf(format, args...)
}

// Merge returns base with the keys of override replacing its own.
// Neither argument is modified.
func Merge(base, override Raw) Raw {
	out := make(Raw, len(base)+len(override))
	maps.Copy(out, base)
	maps.Copy(out, override)
	return out
}

// ResolveVolume returns the action's own volume when set, else the
// configured one.
func (c Config) ResolveVolume(action *float32) float32 {
	if action != nil {
		return *action
	}
	return c.Volume
}

// InterruptWindow is the maximum gap between the two presses of the
// interrupt gesture.
func (c Config) InterruptWindow() time.Duration {
	return time.Duration(c.InterruptWindowMS) * time.Millisecond
}

// TickPeriod is the headless render loop period.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}
