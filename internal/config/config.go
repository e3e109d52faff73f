// Package config loads the pipeline document: layers, agents, aggregation
// strategies, endpoints, and the runtime knobs around them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/moa/internal/backend"
	"github.com/dusk-indust/moa/internal/core"
	"github.com/dusk-indust/moa/internal/endpoint"
	"github.com/dusk-indust/moa/internal/orchestrator"
)

// DefaultFileNames are tried in order when no explicit path is given.
var DefaultFileNames = []string{"moa.yml", "moa.yaml"}

// File is the pipeline document.
type File struct {
	MaxIterations  int             `yaml:"maxIterations,omitempty"`
	SynthesisModel string          `yaml:"synthesisModel,omitempty"`
	MaxParallel    int             `yaml:"maxParallel,omitempty"`
	Endpoints      EndpointsConfig `yaml:"endpoints,omitempty"`
	Breaker        BreakerConfig   `yaml:"breaker,omitempty"`
	Logging        LoggingConfig   `yaml:"logging,omitempty"`
	Stop           StopConfig      `yaml:"stop,omitempty"`
	Layers         []LayerConfig   `yaml:"layers"`
}

// EndpointsConfig lists compute endpoints. MaxActive bounds how many of the
// highest-priority ones are used; zero means all.
type EndpointsConfig struct {
	MaxActive int             `yaml:"maxActive,omitempty"`
	List      []core.Endpoint `yaml:"list,omitempty"`
}

// BreakerConfig configures per-endpoint circuit breakers.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"maxFailures,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Interval    time.Duration `yaml:"interval,omitempty"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// StopConfig builds the stop predicate. Every set field contributes a
// condition; the chain stops when any of them holds.
type StopConfig struct {
	Contains     string `yaml:"contains,omitempty"`
	MaxResponses int    `yaml:"maxResponses,omitempty"`
	Converged    bool   `yaml:"converged,omitempty"`
}

// LayerConfig is one layer of the chain.
type LayerConfig struct {
	Name        string            `yaml:"name,omitempty"`
	Agents      []AgentConfig     `yaml:"agents"`
	Aggregation AggregationConfig `yaml:"aggregation,omitempty"`
}

// AgentConfig is one agent within a layer. Endpoint is either the name of an
// entry in endpoints.list or a URI.
type AgentConfig struct {
	Name         string   `yaml:"name"`
	Model        string   `yaml:"model"`
	Temperature  *float64 `yaml:"temperature,omitempty"`
	Prompt       string   `yaml:"prompt"`
	SystemPrompt string   `yaml:"systemPrompt,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
}

// AggregationConfig selects how a layer's responses are combined.
type AggregationConfig struct {
	Method     string    `yaml:"method,omitempty"`
	Prompt     string    `yaml:"prompt,omitempty"`
	Weights    []float64 `yaml:"weights,omitempty"`
	Comparator string    `yaml:"comparator,omitempty"`
}

// Load reads, defaults, and validates the document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Wrap(core.KindConfiguration, path, err)
	}
	f, err := Parse(data)
	if err != nil {
		var ce *core.Error
		if errors.As(err, &ce) && ce.Op == "" {
			ce.Op = path
		}
		return nil, err
	}
	return f, nil
}

// Find returns the first of DefaultFileNames that exists in dir.
func Find(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", core.Errorf(core.KindConfiguration, dir, "no %s found", DefaultFileNames[0])
}

// Parse decodes a document, applies defaults, and validates it. Unknown keys
// are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &core.Error{Kind: core.KindConfiguration, Msg: "invalid YAML", Err: err}
	}
	f.ApplyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ApplyDefaults fills omitted values.
func (f *File) ApplyDefaults() {
	if f.MaxIterations == 0 {
		f.MaxIterations = 1
	}
	if f.SynthesisModel == "" {
		f.SynthesisModel = orchestrator.DefaultSynthesisModel
	}
	for i := range f.Layers {
		l := &f.Layers[i]
		if l.Name == "" {
			l.Name = fmt.Sprintf("layer-%d", i+1)
		}
		if l.Aggregation.Method == "" {
			l.Aggregation.Method = string(core.MethodConcatenate)
		}
	}
}

// Validate returns a ConfigurationError naming the first offending field.
func (f *File) Validate() error {
	if f.MaxIterations < 1 {
		return fieldError("maxIterations", "must be at least 1, got %d", f.MaxIterations)
	}
	if f.MaxParallel < 0 {
		return fieldError("maxParallel", "must not be negative")
	}
	if _, _, err := backend.ParseModel(f.SynthesisModel); err != nil {
		return fieldError("synthesisModel", "%v", unwrapMsg(err))
	}
	if f.Endpoints.MaxActive < 0 {
		return fieldError("endpoints.maxActive", "must not be negative")
	}
	for i, ep := range f.Endpoints.List {
		if ep.URI == "" {
			return fieldError(fmt.Sprintf("endpoints.list[%d].uri", i), "is required")
		}
	}
	if err := f.validateLogging(); err != nil {
		return err
	}
	if f.Stop.MaxResponses < 0 {
		return fieldError("stop.maxResponses", "must not be negative")
	}

	if len(f.Layers) == 0 {
		return fieldError("layers", "at least one layer is required")
	}
	for i, l := range f.Layers {
		if err := validateLayer(fmt.Sprintf("layers[%d]", i), l); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) validateLogging() error {
	switch f.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fieldError("logging.level", "unknown level %q", f.Logging.Level)
	}
	switch f.Logging.Format {
	case "", "text", "json", "auto":
	default:
		return fieldError("logging.format", "unknown format %q", f.Logging.Format)
	}
	return nil
}

func validateLayer(path string, l LayerConfig) error {
	if len(l.Agents) == 0 {
		return fieldError(path+".agents", "at least one agent is required")
	}
	seen := make(map[string]bool, len(l.Agents))
	for j, a := range l.Agents {
		ap := fmt.Sprintf("%s.agents[%d]", path, j)
		switch {
		case a.Name == "":
			return fieldError(ap+".name", "is required")
		case seen[a.Name]:
			return fieldError(ap+".name", "duplicate agent name %q", a.Name)
		case a.Model == "":
			return fieldError(ap+".model", "is required")
		case a.Prompt == "":
			return fieldError(ap+".prompt", "is required")
		}
		seen[a.Name] = true
		if _, _, err := backend.ParseModel(a.Model); err != nil {
			return fieldError(ap+".model", "%v", unwrapMsg(err))
		}
		if a.Temperature != nil && *a.Temperature < 0 {
			return fieldError(ap+".temperature", "must not be negative")
		}
	}

	agg := l.Aggregation
	method := core.Method(agg.Method)
	if !method.Valid() {
		return fieldError(path+".aggregation.method", "unknown method %q", agg.Method)
	}
	if len(agg.Weights) > 0 {
		var total float64
		for k, w := range agg.Weights {
			if w < 0 {
				return fieldError(fmt.Sprintf("%s.aggregation.weights[%d]", path, k), "must not be negative")
			}
			total += w
		}
		if total == 0 {
			return fieldError(path+".aggregation.weights", "must not all be zero")
		}
	}
	switch agg.Comparator {
	case "", orchestrator.ComparatorExact, orchestrator.ComparatorNormalized:
	default:
		return fieldError(path+".aggregation.comparator", "unknown comparator %q", agg.Comparator)
	}
	return nil
}

// Pipeline converts the document into the immutable chain configuration.
func (f *File) Pipeline() core.Pipeline {
	byName := make(map[string]core.Endpoint, len(f.Endpoints.List))
	for _, ep := range f.Endpoints.List {
		if ep.Name != "" {
			byName[ep.Name] = ep
		}
	}

	layers := make([]core.Layer, len(f.Layers))
	for i, l := range f.Layers {
		agents := make([]core.Agent, len(l.Agents))
		for j, a := range l.Agents {
			agent := core.Agent{
				Name:         a.Name,
				Model:        a.Model,
				Temperature:  a.Temperature,
				Prompt:       core.PromptSpec(a.Prompt),
				SystemPrompt: a.SystemPrompt,
			}
			if a.Endpoint != "" {
				ep, ok := byName[a.Endpoint]
				if !ok {
					ep = core.Endpoint{URI: a.Endpoint}
				}
				agent.Endpoint = &ep
			}
			agents[j] = agent
		}
		layers[i] = core.Layer{
			Name:   l.Name,
			Agents: agents,
			Aggregation: core.AggregationStrategy{
				Method:     core.Method(l.Aggregation.Method),
				Prompt:     core.PromptSpec(l.Aggregation.Prompt),
				Weights:    append([]float64(nil), l.Aggregation.Weights...),
				Comparator: l.Aggregation.Comparator,
			},
		}
	}

	return core.Pipeline{
		Layers:        layers,
		MaxIterations: f.MaxIterations,
		Stop:          f.StopPredicate(),
	}
}

// StopPredicate builds the configured stop condition, or nil when none is set.
func (f *File) StopPredicate() core.StopPredicate {
	var preds []core.StopPredicate
	if f.Stop.Contains != "" {
		preds = append(preds, orchestrator.ContainsStop(f.Stop.Contains))
	}
	if f.Stop.MaxResponses > 0 {
		preds = append(preds, orchestrator.MaxResponsesStop(f.Stop.MaxResponses))
	}
	if f.Stop.Converged {
		preds = append(preds, orchestrator.ConvergedStop())
	}
	return orchestrator.AnyStop(preds...)
}

// Selector returns an endpoint selector over the configured list.
func (f *File) Selector() *endpoint.Selector {
	return endpoint.New(f.Endpoints.List, f.Endpoints.MaxActive)
}

// BreakerSettings converts the breaker section for the backend package.
func (f *File) BreakerSettings() backend.BreakerConfig {
	return backend.BreakerConfig{
		MaxFailures: f.Breaker.MaxFailures,
		Timeout:     f.Breaker.Timeout,
		Interval:    f.Breaker.Interval,
	}
}

func fieldError(field, format string, args ...any) error {
	return core.Errorf(core.KindConfiguration, field, format, args...)
}

// unwrapMsg drops the op prefix of a classified error so it reads well under
// a field path.
func unwrapMsg(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Msg != "" {
		return ce.Msg
	}
	return err.Error()
}
