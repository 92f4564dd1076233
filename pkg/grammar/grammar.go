// Package grammar implements the input-binding and codec layer between a
// bound manifest's vars and the RB-VM: an ordered table of codec
// invocations that transform raw input vars into the typed values a
// program's opcodes expect, and the output_from pointer that names which
// value in the grammar's scope becomes a WF receipt's rendered output.
package grammar

import (
	"fmt"

	"github.com/ubl-gate/core/pkg/canonicalize"
)

// Codec is a pure, deterministic transform from one Value to another.
// Every codec must be total over its documented domain and must never
// perform I/O, consult wall-clock time, or depend on map iteration order.
type Codec func(in canonicalize.Value) (canonicalize.Value, error)

// Registry is the fixed table of codecs grammar documents may reference
// by name.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns a Registry pre-populated with UBL Gate's built-in
// codecs.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register("base64.decode", base64Decode)
	r.Register("base64.encode", base64Encode)
	r.Register("identity", identity)
	return r
}

// Register adds or overwrites a named codec.
func (r *Registry) Register(name string, c Codec) {
	r.codecs[name] = c
}

// Lookup returns the codec registered under name.
func (r *Registry) Lookup(name string) (Codec, bool) {
	c, ok := r.codecs[name]
	return c, ok
}

// Mapping is one ordered entry in a grammar document: apply codec to the
// value bound at From, and store the result under To.
type Mapping struct {
	From  string `yaml:"from" json:"from"`
	Codec string `yaml:"codec" json:"codec"`
	To    string `yaml:"to" json:"to"`
}

// Document is a grammar's ordered codec table plus its output pointer.
type Document struct {
	Inputs     []string  `yaml:"inputs" json:"inputs"`
	Mappings   []Mapping `yaml:"mappings" json:"mappings"`
	OutputFrom string    `yaml:"output_from" json:"output_from"`
}

// Apply runs every mapping in order against vars (mutating a copy) and
// returns the value named by OutputFrom.
func (d *Document) Apply(reg *Registry, vars map[string]canonicalize.Value) (canonicalize.Value, error) {
	scope := make(map[string]canonicalize.Value, len(vars))
	for k, v := range vars {
		scope[k] = v
	}

	for _, m := range d.Mappings {
		in, ok := scope[m.From]
		if !ok {
			return canonicalize.Value{}, fmt.Errorf("grammar: mapping references unbound var %q", m.From)
		}
		codec, ok := reg.Lookup(m.Codec)
		if !ok {
			return canonicalize.Value{}, fmt.Errorf("grammar: unknown codec %q", m.Codec)
		}
		out, err := codec(in)
		if err != nil {
			return canonicalize.Value{}, fmt.Errorf("grammar: codec %q on %q: %w", m.Codec, m.From, err)
		}
		scope[m.To] = out
	}

	out, ok := scope[d.OutputFrom]
	if !ok {
		return canonicalize.Value{}, fmt.Errorf("grammar: output_from references unbound var %q", d.OutputFrom)
	}
	return out, nil
}

func base64Decode(in canonicalize.Value) (canonicalize.Value, error) {
	s, ok := in.AsString()
	if !ok {
		return canonicalize.Value{}, fmt.Errorf("grammar: base64.decode requires a string input")
	}
	b, err := canonicalize.DecodeBytesFromString(s)
	if err != nil {
		return canonicalize.Value{}, fmt.Errorf("grammar: base64.decode: %w", err)
	}
	return canonicalize.Bytes(b), nil
}

func base64Encode(in canonicalize.Value) (canonicalize.Value, error) {
	b, ok := in.AsBytes()
	if !ok {
		return canonicalize.Value{}, fmt.Errorf("grammar: base64.encode requires a bytes input")
	}
	g, err := canonicalize.Bytes(b).Generic()
	if err != nil {
		return canonicalize.Value{}, err
	}
	s, _ := g.(string)
	return canonicalize.String(s), nil
}

func identity(in canonicalize.Value) (canonicalize.Value, error) {
	return in, nil
}
