// Package plan loads declarative hook plans from YAML and applies them to
// a hook registry.
//
//	debug: true
//	host: com.example.app
//	implement:
//	  - class: com.example.Calc
//	    method: add
//	    params: [int, int]
//	    body: param.arg(0) + param.arg(1)
//	targets:
//	  - class: com.example.Calc
//	    by_class_found: true
//	    members:
//	      - tag: add
//	        method: {name: add, param_count: 2}
//	        replace_to: 0
//	invoke:
//	  - class: com.example.Calc
//	    method: add
//	    params: [int, int]
//	    args: [1, 2]
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a hook plan document.
type Plan struct {
	Debug     bool             `yaml:"debug"`
	Host      string           `yaml:"host"`
	Implement []Implementation `yaml:"implement"`
	Targets   []Target         `yaml:"targets"`
	Invoke    []Invocation     `yaml:"invoke"`
}

// Target is one class session.
type Target struct {
	Class string `yaml:"class"`
	// ByClassFound skips the session silently when the class is missing.
	ByClassFound bool     `yaml:"by_class_found"`
	Members      []Member `yaml:"members"`
}

// Member is one hook entry. Exactly one of Method, Constructor and All
// selects the members.
type Member struct {
	Tag         string     `yaml:"tag"`
	Priority    *int       `yaml:"priority"`
	Method      *QuerySpec `yaml:"method"`
	Constructor *QuerySpec `yaml:"constructor"`
	All         bool       `yaml:"all"`

	Before    string    `yaml:"before"`
	After     string    `yaml:"after"`
	Replace   string    `yaml:"replace"`
	ReplaceTo yaml.Node `yaml:"replace_to"`
	Intercept bool      `yaml:"intercept"`
}

// QuerySpec is the YAML form of a member query.
type QuerySpec struct {
	Name       string   `yaml:"name"`
	Params     []string `yaml:"params"`
	EmptyParam bool     `yaml:"empty_param"`
	ParamCount *int     `yaml:"param_count"`
	ReturnType string   `yaml:"return_type"`
	Modifiers  []string `yaml:"modifiers"`
	Index      *int     `yaml:"index"`
	Superclass bool     `yaml:"superclass"`
	Depth      *int     `yaml:"depth"`
	AllLevels  bool     `yaml:"all_levels"`
}

// Implementation gives a member a JavaScript body.
type Implementation struct {
	Class  string   `yaml:"class"`
	Method string   `yaml:"method"`
	Params []string `yaml:"params"`
	Body   string   `yaml:"body"`
}

// Invocation is a call made once the plan is installed.
type Invocation struct {
	Class  string   `yaml:"class"`
	Method string   `yaml:"method"`
	Params []string `yaml:"params"`
	Args   []any    `yaml:"args"`
}

// HasReplaceTo reports whether replace_to was given, null included.
func (m Member) HasReplaceTo() bool { return m.ReplaceTo.Kind != 0 }

// ReplaceValue decodes replace_to.
func (m Member) ReplaceValue() (any, error) {
	var v any
	if err := m.ReplaceTo.Decode(&v); err != nil {
		return nil, fmt.Errorf("replace_to: %w", err)
	}
	return v, nil
}

// Load reads and parses the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the structural rules yaml decoding cannot express.
func (p *Plan) Validate() error {
	for i, t := range p.Targets {
		if t.Class == "" {
			return fmt.Errorf("target %d: class is required", i)
		}
		if len(t.Members) == 0 {
			return fmt.Errorf("target %d (%s): no members", i, t.Class)
		}
		for j, m := range t.Members {
			if err := m.validate(); err != nil {
				return fmt.Errorf("target %d (%s) member %d: %w", i, t.Class, j, err)
			}
		}
	}
	for i, im := range p.Implement {
		if im.Class == "" || im.Method == "" || im.Body == "" {
			return fmt.Errorf("implement %d: class, method and body are required", i)
		}
	}
	for i, inv := range p.Invoke {
		if inv.Class == "" || inv.Method == "" {
			return fmt.Errorf("invoke %d: class and method are required", i)
		}
	}
	return nil
}

func (m Member) validate() error {
	n := 0
	if m.Method != nil {
		n++
	}
	if m.Constructor != nil {
		n++
	}
	if m.All {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of method, constructor and all is required")
	}

	replacing := 0
	if m.Replace != "" {
		replacing++
	}
	if m.HasReplaceTo() {
		replacing++
	}
	if m.Intercept {
		replacing++
	}
	if replacing > 1 {
		return errors.New("replace, replace_to and intercept are exclusive")
	}
	if replacing == 1 && (m.Before != "" || m.After != "") {
		return errors.New("a replacement cannot be combined with before or after")
	}
	return nil
}
