package action

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cogtask/internal/taskerr"
)

// Spec decodes one action from YAML. An action is either a bare kind
// name or a single-key map from kind to body:
//
//	seq:
//	  - key_logger: {group: answers}
//	  - counter: {from: 5}
//	  - wait: 1.5s
//	  - stream: {src: "synthetic://64x48?frames=90&fps=30", width: 640}
//	  - nil
type Spec struct {
	Action Action
}

type decodeFunc func(body *yaml.Node) (Action, error)

var decoders map[string]decodeFunc

func init() {
	decoders = map[string]decodeFunc{
		"nil":        decodeNil,
		"wait":       decodeWait,
		"key_logger": decodeKeyLogger,
		"counter":    decodeCounter,
		"stream":     decodeStream,
		"seq":        decodeSeq,
		"par":        decodePar,
	}
}

// Kinds returns the known action kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(decoders))
	for k := range decoders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Spec) UnmarshalYAML(n *yaml.Node) error {
	var kind string
	var body *yaml.Node

	switch n.Kind {
	case yaml.ScalarNode:
		kind = n.Value
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return definitionError(n, "action must be a single-key map, got %d keys", len(n.Content)/2)
		}
		kind = n.Content[0].Value
		body = n.Content[1]
		if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
			body = nil
		}
	default:
		return definitionError(n, "action must be a kind name or a single-key map")
	}

	decode, ok := decoders[kind]
	if !ok {
		return definitionError(n, "unknown action kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	a, err := decode(body)
	if err != nil {
		return err
	}
	s.Action = a
	return nil
}

func definitionError(n *yaml.Node, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return taskerr.New(taskerr.KindTaskDefinition, "line %d: %s", n.Line, msg)
}

// decodeStrict decodes body into v, rejecting unknown fields.
func decodeStrict(body *yaml.Node, v any) error {
	if body == nil {
		return nil
	}
	raw, err := yaml.Marshal(body)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return taskerr.Wrap(taskerr.KindTaskDefinition, err, "line %d", body.Line)
	}
	return nil
}

func decodeNil(body *yaml.Node) (Action, error) {
	if body != nil {
		return nil, definitionError(body, "nil takes no arguments")
	}
	return Nil{}, nil
}

func decodeWait(body *yaml.Node) (Action, error) {
	if body == nil {
		return nil, taskerr.New(taskerr.KindTaskDefinition, "wait needs a duration")
	}

	raw := body.Value
	if body.Kind == yaml.MappingNode {
		var w struct {
			Duration string `yaml:"duration"`
		}
		if err := decodeStrict(body, &w); err != nil {
			return nil, err
		}
		raw = w.Duration
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, definitionError(body, "wait duration: %v", err)
	}
	return Wait{Duration: d}, nil
}

func decodeKeyLogger(body *yaml.Node) (Action, error) {
	k := KeyLogger{Group: DefaultKeyGroup}
	if err := decodeStrict(body, &k); err != nil {
		return nil, err
	}
	return k, nil
}

func decodeCounter(body *yaml.Node) (Action, error) {
	c := Counter{From: DefaultCounterFrom}
	if err := decodeStrict(body, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeStream(body *yaml.Node) (Action, error) {
	var s Stream
	if body != nil && body.Kind == yaml.ScalarNode {
		s.Src = body.Value
		return s, nil
	}
	if err := decodeStrict(body, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeChildren(kind string, body *yaml.Node) ([]Action, error) {
	if body == nil {
		return nil, nil
	}
	if body.Kind != yaml.SequenceNode {
		return nil, definitionError(body, "%s takes a list of actions", kind)
	}
	var specs []Spec
	if err := body.Decode(&specs); err != nil {
		return nil, err
	}
	out := make([]Action, len(specs))
	for i, s := range specs {
		out[i] = s.Action
	}
	return out, nil
}

func decodeSeq(body *yaml.Node) (Action, error) {
	children, err := decodeChildren("seq", body)
	if err != nil {
		return nil, err
	}
	return Seq{Children: children}, nil
}

func decodePar(body *yaml.Node) (Action, error) {
	children, err := decodeChildren("par", body)
	if err != nil {
		return nil, err
	}
	return Par{Children: children}, nil
}

// Describe renders a as an indented outline, one action per line.
func Describe(a Action) string {
	var b strings.Builder
	describe(&b, a, 0)
	return b.String()
}

func describe(b *strings.Builder, a Action, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := a.(type) {
	case Seq:
		fmt.Fprintf(b, "%sseq\n", indent)
		for _, c := range x.Children {
			describe(b, c, depth+1)
		}
	case Par:
		fmt.Fprintf(b, "%spar\n", indent)
		for _, c := range x.Children {
			describe(b, c, depth+1)
		}
	case Nil:
		fmt.Fprintf(b, "%snil\n", indent)
	case Wait:
		fmt.Fprintf(b, "%swait %s\n", indent, x.Duration)
	case KeyLogger:
		fmt.Fprintf(b, "%skey_logger group=%s\n", indent, x.Group)
	case Counter:
		fmt.Fprintf(b, "%scounter from=%d\n", indent, x.From)
	case Stream:
		fmt.Fprintf(b, "%sstream src=%s looping=%t\n", indent, x.Src, x.Looping)
	default:
		fmt.Fprintf(b, "%s%s\n", indent, a.Kind())
	}
}
