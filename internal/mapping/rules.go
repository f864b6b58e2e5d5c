// Package mapping turns named signals into named output parameters according
// to a declarative rule list.
package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Interpolation selects the curve applied to a normalised input.
type Interpolation string

const (
	InterpolationLinear      Interpolation = "linear"
	InterpolationLogarithmic Interpolation = "logarithmic"
	InterpolationExponential Interpolation = "exponential"
)

// ParseInterpolation accepts the canonical names and their short forms, case-insensitively.
func ParseInterpolation(raw string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "linear", "lin":
		return InterpolationLinear, nil
	case "logarithmic", "log":
		return InterpolationLogarithmic, nil
	case "exponential", "exp":
		return InterpolationExponential, nil
	default:
		return "", fmt.Errorf("unknown interpolation mode %q", raw)
	}
}

// Operation reduces the per-stream values of a rule into one parameter value.
type Operation string

const (
	OperationAdd      Operation = "add"
	OperationSubtract Operation = "subtract"
	OperationMultiply Operation = "multiply"
	OperationDivide   Operation = "divide"
	OperationMin      Operation = "min"
	OperationMax      Operation = "max"
	OperationAverage  Operation = "average"
)

// ParseOperation is case-insensitive. An empty operation means add.
func ParseOperation(raw string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(raw)))
	switch op {
	case "":
		return OperationAdd, nil
	case OperationAdd, OperationSubtract, OperationMultiply, OperationDivide, OperationMin, OperationMax, OperationAverage:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", raw)
	}
}

// StreamDocument is one signal reference as it appears in the rule asset.
type StreamDocument struct {
	SignalName        string   `json:"signalName" jsonschema:"title=Signal name,description=Name of the input signal read each tick.,minLength=1,required"`
	InterpolationMode string   `json:"interpolationMode,omitempty" jsonschema:"title=Interpolation mode,description=Curve applied after normalising into the input range.,enum=linear,enum=logarithmic,enum=exponential"`
	InputMin          *float64 `json:"inputMin,omitempty" jsonschema:"title=Input minimum,description=Lower bound of the input range. Defaults to 0."`
	InputMax          *float64 `json:"inputMax,omitempty" jsonschema:"title=Input maximum,description=Upper bound of the input range. Defaults to 1."`
	OutputMin         *float64 `json:"outputMin,omitempty" jsonschema:"title=Output minimum,description=Value produced at the bottom of the input range. Defaults to 0."`
	OutputMax         *float64 `json:"outputMax,omitempty" jsonschema:"title=Output maximum,description=Value produced at the top of the input range. Defaults to 1."`
}

// RuleDocument is one mapping rule as it appears in the rule asset.
type RuleDocument struct {
	TargetParameter string           `json:"targetParameter" jsonschema:"title=Target parameter,description=Name of the emitted parameter.,minLength=1,required"`
	Enabled         *bool            `json:"enabled,omitempty" jsonschema:"title=Enabled,description=Disabled rules are skipped. Defaults to true."`
	Operation       string           `json:"operation,omitempty" jsonschema:"title=Operation,description=Reduction applied across the stream values.,enum=add,enum=subtract,enum=multiply,enum=divide,enum=min,enum=max,enum=average"`
	Streams         []StreamDocument `json:"streams" jsonschema:"title=Streams,description=Signals feeding the rule in order.,required"`
}

// Document is the whole rule asset.
type Document []RuleDocument

// Stream is a validated signal reference.
type Stream struct {
	Signal        string
	Interpolation Interpolation
	InputMin      float64
	InputMax      float64
	OutputMin     float64
	OutputMax     float64
}

// Rule is a validated mapping rule.
type Rule struct {
	Target    string
	Enabled   bool
	Operation Operation
	Streams   []Stream
}

// Rules is an ordered rule list.
type Rules []Rule

// Enabled returns the number of enabled rules.
func (r Rules) Enabled() int {
	count := 0
	for _, rule := range r {
		if rule.Enabled {
			count++
		}
	}
	return count
}

// Document renders the validated rules back into their asset form with every
// default spelled out.
func (r Rules) Document() Document {
	doc := make(Document, 0, len(r))
	for _, rule := range r {
		enabled := rule.Enabled
		entry := RuleDocument{
			TargetParameter: rule.Target,
			Enabled:         &enabled,
			Operation:       string(rule.Operation),
			Streams:         make([]StreamDocument, 0, len(rule.Streams)),
		}
		for _, stream := range rule.Streams {
			inMin, inMax := stream.InputMin, stream.InputMax
			outMin, outMax := stream.OutputMin, stream.OutputMax
			entry.Streams = append(entry.Streams, StreamDocument{
				SignalName:        stream.Signal,
				InterpolationMode: string(stream.Interpolation),
				InputMin:          &inMin,
				InputMax:          &inMax,
				OutputMin:         &outMin,
				OutputMax:         &outMax,
			})
		}
		doc = append(doc, entry)
	}
	return doc
}

// Parse decodes a rule asset. Malformed entries are skipped and reported
// individually; a malformed document yields no rules. Parse never fails outright.
func Parse(data []byte) (Rules, []error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, []error{errors.New("mapping: empty rule document")}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, []error{fmt.Errorf("mapping: decode rule document: %w", err)}
	}

	rules := make(Rules, 0, len(raw))
	var errs []error
	for i, entry := range raw {
		var doc RuleDocument
		if err := json.Unmarshal(entry, &doc); err != nil {
			errs = append(errs, fmt.Errorf("mapping: rule %d: %w", i, err))
			continue
		}
		rule, err := doc.rule()
		if err != nil {
			errs = append(errs, fmt.Errorf("mapping: rule %d: %w", i, err))
			continue
		}
		rules = append(rules, rule)
	}
	return rules, errs
}

// Load reads and parses a rule asset from disk. A missing file yields no rules.
func Load(path string) (Rules, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("mapping: read %s: %w", path, err)}
	}
	return Parse(data)
}

func (doc RuleDocument) rule() (Rule, error) {
	target := strings.TrimSpace(doc.TargetParameter)
	if target == "" {
		return Rule{}, errors.New("missing targetParameter")
	}
	op, err := ParseOperation(doc.Operation)
	if err != nil {
		return Rule{}, fmt.Errorf("%s: %w", target, err)
	}
	if len(doc.Streams) == 0 {
		return Rule{}, fmt.Errorf("%s: no streams", target)
	}
	rule := Rule{
		Target:    target,
		Enabled:   doc.Enabled == nil || *doc.Enabled,
		Operation: op,
		Streams:   make([]Stream, 0, len(doc.Streams)),
	}
	for i, streamDoc := range doc.Streams {
		stream, err := streamDoc.stream()
		if err != nil {
			return Rule{}, fmt.Errorf("%s: stream %d: %w", target, i, err)
		}
		rule.Streams = append(rule.Streams, stream)
	}
	return rule, nil
}

func (doc StreamDocument) stream() (Stream, error) {
	signal := strings.TrimSpace(doc.SignalName)
	if signal == "" {
		return Stream{}, errors.New("missing signalName")
	}
	mode, err := ParseInterpolation(doc.InterpolationMode)
	if err != nil {
		return Stream{}, err
	}
	return Stream{
		Signal:        signal,
		Interpolation: mode,
		InputMin:      valueOr(doc.InputMin, 0),
		InputMax:      valueOr(doc.InputMax, 1),
		OutputMin:     valueOr(doc.OutputMin, 0),
		OutputMax:     valueOr(doc.OutputMax, 1),
	}, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
