package harness

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/strandworks/strand/internal/cells"
	"github.com/strandworks/strand/internal/engine"
)

// Program is a built-in workload a scenario can run. A program mounts
// its units on the engine and exposes named inputs for dispatch steps.
type Program interface {
	// Name identifies the program in scenario files.
	Name() string

	// Mount installs the program's units. Called once per run, before
	// any step executes.
	Mount(e *engine.Engine)

	// Dispatch invokes a named input with the step's argument. The
	// caller has already established the priority/transition context.
	Dispatch(input string, value any) error
}

// programBuilders maps program names to constructors. Each run gets a
// fresh instance so scenario runs never share state.
var programBuilders = map[string]func() Program{
	"counter":     func() Program { return &counterProgram{} },
	"appender":    func() Program { return &appenderProgram{} },
	"transitions": func() Program { return &transitionsProgram{} },
}

// Programs lists the available program names, sorted.
func Programs() []string {
	names := make([]string, 0, len(programBuilders))
	for name := range programBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newProgram instantiates the named program.
func newProgram(name string) (Program, error) {
	build, ok := programBuilders[name]
	if !ok {
		return nil, fmt.Errorf("unknown program %q (have %v)", name, Programs())
	}
	return build(), nil
}

// toInt coerces a YAML scalar into an int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// toString coerces a YAML scalar into a string.
func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case int:
		return strconv.Itoa(s), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

// counterProgram is a single integer counter unit.
//
// Inputs: "set" (replace with value), "add" (functional update).
type counterProgram struct {
	set cells.Setter
}

func (p *counterProgram) Name() string { return "counter" }

func (p *counterProgram) Mount(e *engine.Engine) {
	e.Mount("counter", func(inv *cells.Invocation) any {
		v, s := inv.State(0)
		p.set = s
		return v
	})
}

func (p *counterProgram) Dispatch(input string, value any) error {
	n, err := toInt(value)
	if err != nil {
		return fmt.Errorf("counter %s: %w", input, err)
	}
	switch input {
	case "set":
		p.set(n)
	case "add":
		p.set(func(prev any) any { return prev.(int) + n })
	default:
		return fmt.Errorf("counter: unknown input %q", input)
	}
	return nil
}

// appenderProgram is a string-building unit whose updates append text,
// making skip/rebase visible in the committed values.
//
// Inputs: "append" (append value to the string).
type appenderProgram struct {
	set cells.Setter
}

func (p *appenderProgram) Name() string { return "appender" }

func (p *appenderProgram) Mount(e *engine.Engine) {
	e.Mount("text", func(inv *cells.Invocation) any {
		v, s := inv.State("")
		p.set = s
		return v
	})
}

func (p *appenderProgram) Dispatch(input string, value any) error {
	s, err := toString(value)
	if err != nil {
		return fmt.Errorf("appender %s: %w", input, err)
	}
	switch input {
	case "append":
		p.set(func(prev any) any { return prev.(string) + s })
	default:
		return fmt.Errorf("appender: unknown input %q", input)
	}
	return nil
}

// transitionsProgram is a two-field unit for exercising transition lanes
// and entanglement.
//
// Inputs: "set-a", "set-b" (replace the respective field).
type transitionsProgram struct {
	setA cells.Setter
	setB cells.Setter
}

func (p *transitionsProgram) Name() string { return "transitions" }

func (p *transitionsProgram) Mount(e *engine.Engine) {
	e.Mount("pair", func(inv *cells.Invocation) any {
		a, sa := inv.State("a0")
		b, sb := inv.State("b0")
		p.setA, p.setB = sa, sb
		return a.(string) + "/" + b.(string)
	})
}

func (p *transitionsProgram) Dispatch(input string, value any) error {
	s, err := toString(value)
	if err != nil {
		return fmt.Errorf("transitions %s: %w", input, err)
	}
	switch input {
	case "set-a":
		p.setA(s)
	case "set-b":
		p.setB(s)
	default:
		return fmt.Errorf("transitions: unknown input %q", input)
	}
	return nil
}
