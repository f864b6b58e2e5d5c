package mapping

import (
	"math"
)

// Param is one named output value.
type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Evaluator applies a fixed rule list to signal snapshots.
type Evaluator struct {
	rules Rules
}

// NewEvaluator returns an evaluator over a copy of rules.
func NewEvaluator(rules Rules) *Evaluator {
	copied := make(Rules, len(rules))
	copy(copied, rules)
	return &Evaluator{rules: copied}
}

// Rules returns the rule list the evaluator was built from.
func (e *Evaluator) Rules() Rules {
	if e == nil {
		return nil
	}
	copied := make(Rules, len(e.rules))
	copy(copied, e.rules)
	return copied
}

// Evaluate emits one parameter per enabled rule, in rule order. Missing signals
// read as 0 and rules that produce a non-finite value are skipped.
func (e *Evaluator) Evaluate(signals map[string]float64) []Param {
	if e == nil || len(e.rules) == 0 {
		return nil
	}
	params := make([]Param, 0, len(e.rules))
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		value, ok := rule.evaluate(signals)
		if !ok {
			continue
		}
		params = append(params, Param{Name: rule.Target, Value: value})
	}
	return params
}

func (r Rule) evaluate(signals map[string]float64) (float64, bool) {
	if len(r.Streams) == 0 {
		return 0, false
	}
	acc := 0.0
	count := 0
	for _, stream := range r.Streams {
		input := signals[stream.Signal]
		if math.IsNaN(input) || math.IsInf(input, 0) {
			input = 0
		}
		value := stream.Apply(input)
		if count == 0 {
			acc = value
			count++
			continue
		}
		switch r.Operation {
		case OperationSubtract:
			acc -= value
		case OperationMultiply:
			acc *= value
		case OperationDivide:
			if value != 0 {
				acc /= value
			}
		case OperationMin:
			acc = math.Min(acc, value)
		case OperationMax:
			acc = math.Max(acc, value)
		case OperationAverage:
			acc += (value - acc) / float64(count+1)
		default:
			acc += value
		}
		count++
	}
	if math.IsNaN(acc) || math.IsInf(acc, 0) {
		return 0, false
	}
	return acc, true
}
