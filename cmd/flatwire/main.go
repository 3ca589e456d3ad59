package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	fw "github.com/reoring/flatwire"
	"github.com/reoring/flatwire/callback"
	"github.com/reoring/flatwire/component"
	"github.com/reoring/flatwire/config"
	"github.com/reoring/flatwire/manifest"
	"github.com/reoring/flatwire/protocol"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "inspect":
		return inspectCmd(args[1:], stdout, stderr)
	case "unflatten":
		return unflattenCmd(args[1:], stdout, stderr)
	case "flatten":
		return flattenCmd(args[1:], stdout, stderr)
	default:
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "flatwire CLI\n\nUsage:\n  flatwire inspect -f manifest.yaml [-config flatwire.yaml]\n  flatwire unflatten -schema schema.yaml -values '[...]'\n  flatwire flatten -schema schema.yaml -value '...'\n\nNotes:\n  - Schemas are YAML: sequences and mappings nest, any scalar is a leaf.")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

type bindingView struct {
	Name         string   `json:"name"`
	Bucket       string   `json:"bucket"`
	Range        [2]int   `json:"range"`
	Shape        string   `json:"shape"`
	Dependencies []string `json:"dependencies"`
}

type callbackView struct {
	Name       string        `json:"name"`
	Line       int           `json:"line"`
	InputForm  string        `json:"input_form"`
	OutputForm string        `json:"output_form"`
	Arguments  []bindingView `json:"arguments"`
	Outputs    []bindingView `json:"outputs"`
}

type inspectView struct {
	Callbacks    []callbackView  `json:"callbacks"`
	Dependencies []protocol.Spec `json:"dependencies"`
}

func inspectCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("inspect", stderr)
	var file, cfgPath string
	fs.StringVar(&file, "f", "", "callback manifest (YAML)")
	fs.StringVar(&cfgPath, "config", "", "flatwire config file (YAML)")
	if err := fs.Parse(args); err != nil || file == "" {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return fail(stderr, err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		return fail(stderr, err)
	}
	defer func() { _ = logger.Sync() }()
	fw.SetLogger(logger)

	f, err := os.Open(file)
	if err != nil {
		return fail(stderr, err)
	}
	defer f.Close()
	cbs, err := manifest.Load(f)
	if err != nil {
		return fail(stderr, err)
	}

	reg := protocol.NewRegistry()
	view := inspectView{Callbacks: make([]callbackView, 0, len(cbs))}
	opts := append(cfg.CallbackOptions(), callback.WithInferrer(component.Inferrer{}), callback.WithCoercer(component.Coercer{}))
	for _, cb := range cbs {
		w, err := cb.Build(callback.HandlerFunc(func(context.Context, callback.Args) (any, error) {
			return callback.NoUpdate, nil
		}), opts...)
		if err != nil {
			return fail(stderr, fmt.Errorf("callback %q (line %d): %w", cb.Name, cb.Line, err))
		}
		if err := w.Register(context.Background(), reg); err != nil {
			return fail(stderr, fmt.Errorf("callback %q (line %d): %w", cb.Name, cb.Line, err))
		}
		sig := w.Signature()
		view.Callbacks = append(view.Callbacks, callbackView{
			Name:       w.Name(),
			Line:       cb.Line,
			InputForm:  sig.InputForm.String(),
			OutputForm: sig.OutputForm.String(),
			Arguments:  bindings(sig.Args),
			Outputs:    bindings(sig.Outputs),
		})
	}
	view.Dependencies = reg.Specs()
	return writeJSON(stdout, stderr, view)
}

func bindings(bs []callback.Binding) []bindingView {
	out := make([]bindingView, len(bs))
	for i, b := range bs {
		deps := fw.Leaves(b.Grouping)
		keys := make([]string, len(deps))
		for k, d := range deps {
			keys[k] = d.Key()
		}
		out[i] = bindingView{
			Name:         b.Name.String(),
			Bucket:       b.Bucket.String(),
			Range:        [2]int{b.Start, b.End},
			Shape:        fw.SchemaOf(b.Grouping).String(),
			Dependencies: keys,
		}
	}
	return out
}

func unflattenCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("unflatten", stderr)
	var schemaPath, values string
	fs.StringVar(&schemaPath, "schema", "", "schema file (YAML)")
	fs.StringVar(&values, "values", "", "flat values (JSON array)")
	if err := fs.Parse(args); err != nil || schemaPath == "" || values == "" {
		fs.Usage()
		return exitUsage
	}
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return fail(stderr, err)
	}
	var flat []any
	if err := j.Unmarshal([]byte(values), &flat); err != nil {
		return fail(stderr, fmt.Errorf("values: %w", err))
	}
	g, err := fw.Unflatten(schema, flat)
	if err != nil {
		return fail(stderr, err)
	}
	return writeJSON(stdout, stderr, g)
}

func flattenCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("flatten", stderr)
	var schemaPath, value string
	fs.StringVar(&schemaPath, "schema", "", "schema file (YAML)")
	fs.StringVar(&value, "value", "", "nested value (JSON)")
	if err := fs.Parse(args); err != nil || schemaPath == "" || value == "" {
		fs.Usage()
		return exitUsage
	}
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return fail(stderr, err)
	}
	var v any
	if err := j.Unmarshal([]byte(value), &v); err != nil {
		return fail(stderr, fmt.Errorf("value: %w", err))
	}
	if err := fw.Validate(v, schema); err != nil {
		return fail(stderr, err)
	}
	flat, err := fw.Flatten(v, schema)
	if err != nil {
		return fail(stderr, err)
	}
	return writeJSON(stdout, stderr, flat)
}

func loadSchema(path string) (fw.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fw.Schema{}, err
	}
	var s fw.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fw.Schema{}, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	b, err := j.Marshal(v)
	if err != nil {
		return fail(stderr, err)
	}
	var buf bytes.Buffer
	buf.Write(b)
	buf.WriteByte('\n')
	if _, err := stdout.Write(buf.Bytes()); err != nil {
		return fail(stderr, err)
	}
	return exitOK
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, "error:", err)
	if iss, ok := fw.AsIssues(err); ok {
		for _, it := range iss {
			fmt.Fprintf(stderr, "  %s %s: %s\n", it.Path, it.Code, it.Message)
		}
	}
	return exitError
}
