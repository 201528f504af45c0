package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/chunkcatchup/internal/chunk"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d %s %s\n", i+1, event.Step, event.Channel, event.Label())
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	errs := []string{}
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDispatchOrder:
		return assertDispatchOrder(result.Trace, a)
	case AssertDispatchCount:
		return assertDispatchCount(result.Trace, a)
	case AssertNotDispatchedThrough:
		return assertNotDispatchedThrough(result.Trace, a)
	case AssertNoDuplicates:
		return assertNoDuplicates(result.Trace)
	case AssertFinalState:
		if result.FinalState != a.State {
			return &AssertionError{Type: a.Type, Expected: a.State, Actual: result.FinalState, Trace: result.Trace}
		}
		return nil
	case AssertFailedChannels:
		return assertFailedChannels(result, a)
	case AssertProcessed:
		if result.Processed != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d processed sequence ids", *a.Count),
				Actual:   fmt.Sprintf("%d", result.Processed),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertDispatchOrder checks the exact dispatch sequence.
func assertDispatchOrder(trace []TraceEvent, a Assertion) error {
	got := make([]string, len(trace))
	for i, e := range trace {
		got[i] = e.Label()
	}
	if !slices.Equal(got, a.Labels) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", a.Labels),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertDispatchCount counts dispatches, optionally on one channel.
func assertDispatchCount(trace []TraceEvent, a Assertion) error {
	ch, err := optionalChannel(a.Channel)
	if err != nil {
		return err
	}
	n := 0
	for _, e := range trace {
		if ch == "" || e.Channel == string(ch) {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d dispatches", *a.Count),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotDispatchedThrough checks that nothing at or below seq was
// dispatched, optionally on one channel.
func assertNotDispatchedThrough(trace []TraceEvent, a Assertion) error {
	ch, err := optionalChannel(a.Channel)
	if err != nil {
		return err
	}
	for _, e := range trace {
		if ch != "" && e.Channel != string(ch) {
			continue
		}
		if e.Seq != nil && *e.Seq <= *a.Seq {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("no dispatch with seq <= %d", *a.Seq),
				Actual:   fmt.Sprintf("dispatched %s on %s in step %d", e.Label(), e.Channel, e.Step),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertNoDuplicates checks that no (channel, seq, kind, text) repeats.
// Unsequenced chunks are ignored.
func assertNoDuplicates(trace []TraceEvent) error {
	type key struct {
		channel, kind, text string
		seq                 int64
	}
	seen := make(map[key]int)
	for i, e := range trace {
		if e.Seq == nil {
			continue
		}
		k := key{e.Channel, e.Type, e.Text, *e.Seq}
		if first, ok := seen[k]; ok {
			return &AssertionError{
				Type:     AssertNoDuplicates,
				Expected: "each chunk dispatched once",
				Actual:   fmt.Sprintf("%s dispatched at positions %d and %d", e.Label(), first+1, i+1),
				Trace:    trace,
			}
		}
		seen[k] = i
	}
	return nil
}

// assertFailedChannels compares the union of failed channels across all
// catch-up steps, order-insensitively.
func assertFailedChannels(result *Result, a Assertion) error {
	got := []string{}
	for _, r := range result.Reports {
		for _, ch := range r.FailedChannels {
			if !slices.Contains(got, ch) {
				got = append(got, ch)
			}
		}
	}

	want := make([]string, 0, len(a.Channels))
	for _, name := range a.Channels {
		ch, err := chunk.ParseChannel(name)
		if err != nil {
			return err
		}
		want = append(want, string(ch))
	}

	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func optionalChannel(name string) (chunk.Channel, error) {
	if name == "" {
		return "", nil
	}
	return chunk.ParseChannel(name)
}

func formatLabel(seq int64, kind string) string {
	return fmt.Sprintf("%d:%s", seq, kind)
}
