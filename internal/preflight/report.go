package preflight

import (
	"fmt"
	"io"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Title  string
	Passed bool
	Reason string
	Err    error
}

func (r CheckResult) String() string {
	if r.Passed {
		return fmt.Sprintf("PASS %s", r.Title)
	}
	return fmt.Sprintf("FAIL %s: %s", r.Title, r.Reason)
}

// Report collects check results in evaluation order.
type Report struct {
	Results []CheckResult
}

func (r *Report) Add(result CheckResult) {
	r.Results = append(r.Results, result)
}

// Failed returns the number of checks that did not pass.
func (r *Report) Failed() int {
	n := 0
	for _, result := range r.Results {
		if !result.Passed {
			n++
		}
	}
	return n
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	return r.Failed() == 0
}

// Render writes one line per check followed by a summary line.
func (r *Report) Render(w io.Writer) error {
	for _, result := range r.Results {
		if _, err := fmt.Fprintln(w, result); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d checks, %d passed, %d failed\n",
		len(r.Results), len(r.Results)-r.Failed(), r.Failed())
	return err
}
