package mapping

import (
	"math"
	"testing"
)

func TestIdentityStreamIsExact(t *testing.T) {
	rules, errs := Parse([]byte(`[{"targetParameter":"out","operation":"add","streams":[{"signalName":"in","interpolationMode":"linear","inputMin":0,"inputMax":1,"outputMin":0,"outputMax":1}]}]`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	params := NewEvaluator(rules).Evaluate(map[string]float64{"in": 0.5})
	if len(params) != 1 || params[0].Name != "out" || params[0].Value != 0.5 {
		t.Fatalf("expected out=0.5, got %+v", params)
	}
}

func TestStreamApplyCurves(t *testing.T) {
	cases := []struct {
		name   string
		stream Stream
		input  float64
		want   float64
	}{
		{name: "linear midpoint", stream: Stream{Interpolation: InterpolationLinear, InputMax: 1, OutputMax: 1}, input: 0.25, want: 0.25},
		{name: "log top", stream: Stream{Interpolation: InterpolationLogarithmic, InputMax: 1, OutputMax: 1}, input: 1, want: 1},
		{name: "log midpoint", stream: Stream{Interpolation: InterpolationLogarithmic, InputMax: 1, OutputMax: 1}, input: 0.5, want: math.Log10(5.5)},
		{name: "exp midpoint", stream: Stream{Interpolation: InterpolationExponential, InputMax: 1, OutputMax: 1}, input: 0.5, want: (math.Sqrt(10) - 1) / 9},
		{name: "exp bottom", stream: Stream{Interpolation: InterpolationExponential, InputMax: 1, OutputMax: 1}, input: 0, want: 0},
		{name: "clamped above", stream: Stream{Interpolation: InterpolationLinear, InputMax: 10, OutputMin: 2, OutputMax: 4}, input: 50, want: 4},
		{name: "clamped below", stream: Stream{Interpolation: InterpolationLinear, InputMax: 10, OutputMin: 2, OutputMax: 4}, input: -5, want: 2},
		{name: "rescaled", stream: Stream{Interpolation: InterpolationLinear, InputMin: 10, InputMax: 20, OutputMin: 100, OutputMax: 200}, input: 15, want: 150},
		{name: "inverted output", stream: Stream{Interpolation: InterpolationLinear, InputMax: 1, OutputMin: 1, OutputMax: 0}, input: 0.25, want: 0.75},
		{name: "degenerate input", stream: Stream{Interpolation: InterpolationLinear, InputMin: 3, InputMax: 3, OutputMin: 7, OutputMax: 9}, input: 5, want: 7},
	}
	for _, tc := range cases {
		if got := tc.stream.Apply(tc.input); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestOperations(t *testing.T) {
	identity := func(signal string) Stream {
		return Stream{Signal: signal, Interpolation: InterpolationLinear, InputMax: 100, OutputMax: 100}
	}
	streams := []Stream{identity("a"), identity("b"), identity("c")}
	signals := map[string]float64{"a": 8, "b": 2, "c": 4}

	cases := map[Operation]float64{
		OperationAdd:      14,
		OperationSubtract: 2,
		OperationMultiply: 64,
		OperationDivide:   1,
		OperationMin:      2,
		OperationMax:      8,
		OperationAverage:  14.0 / 3,
	}
	for op, want := range cases {
		evaluator := NewEvaluator(Rules{{Target: "x", Enabled: true, Operation: op, Streams: streams}})
		params := evaluator.Evaluate(signals)
		if len(params) != 1 || math.Abs(params[0].Value-want) > 1e-12 {
			t.Fatalf("%s: expected %v, got %+v", op, want, params)
		}
	}
}

func TestDivideSkipsZeroDivisor(t *testing.T) {
	stream := func(signal string) Stream {
		return Stream{Signal: signal, Interpolation: InterpolationLinear, InputMax: 10, OutputMax: 10}
	}
	evaluator := NewEvaluator(Rules{{
		Target:    "ratio",
		Enabled:   true,
		Operation: OperationDivide,
		Streams:   []Stream{stream("a"), stream("zero"), stream("b")},
	}})
	params := evaluator.Evaluate(map[string]float64{"a": 6, "b": 2})
	if len(params) != 1 || params[0].Value != 3 {
		t.Fatalf("expected zero divisor skipped and 6/2=3, got %+v", params)
	}
}

func TestEvaluateSkipsDisabledAndKeepsOrder(t *testing.T) {
	rules, errs := Parse([]byte(`[
		{"targetParameter":"first","streams":[{"signalName":"s"}]},
		{"targetParameter":"off","enabled":false,"streams":[{"signalName":"s"}]},
		{"targetParameter":"second","streams":[{"signalName":"missing"}]}
	]`))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	params := NewEvaluator(rules).Evaluate(map[string]float64{"s": 0.3})
	if len(params) != 2 {
		t.Fatalf("expected two params, got %+v", params)
	}
	if params[0].Name != "first" || params[0].Value != 0.3 {
		t.Fatalf("unexpected first param %+v", params[0])
	}
	if params[1].Name != "second" || params[1].Value != 0 {
		t.Fatalf("expected missing signal to read as 0, got %+v", params[1])
	}
}

func TestEvaluateSkipsNonFiniteResults(t *testing.T) {
	huge := Stream{Signal: "s", Interpolation: InterpolationLinear, InputMax: 1, OutputMax: math.MaxFloat64}
	evaluator := NewEvaluator(Rules{
		{Target: "overflow", Enabled: true, Operation: OperationMultiply, Streams: []Stream{huge, huge}},
		{Target: "ok", Enabled: true, Operation: OperationAdd, Streams: []Stream{{Signal: "s", Interpolation: InterpolationLinear, InputMax: 1, OutputMax: 1}}},
	})
	params := evaluator.Evaluate(map[string]float64{"s": 1})
	if len(params) != 1 || params[0].Name != "ok" {
		t.Fatalf("expected only the finite rule, got %+v", params)
	}
}

func TestNilEvaluatorProducesNothing(t *testing.T) {
	var evaluator *Evaluator
	if params := evaluator.Evaluate(map[string]float64{"s": 1}); params != nil {
		t.Fatalf("expected no params, got %+v", params)
	}
}
