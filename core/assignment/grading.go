package assignment

import (
	"math"
	"strconv"
	"strings"

	"github.com/wwu-chemlab/chemlab/core"
)

// relativeTolerance is used for numeric tasks without a NumericAccuracy.
const relativeTolerance = 1e-9

var errNotNumeric = core.NewFieldError("value", "a number is required")

// Check reports whether input is a correct answer to the task.
// Numeric tasks accept answers within half a unit of the NumericAccuracy-th decimal place
// and reject non-numeric input with a ValidationError. Other tasks compare case-insensitively.
// A task without an answer accepts any non-blank input.
func (t TaskTemplate) Check(input string) (bool, error) {
	input = strings.TrimSpace(input)

	if t.NumericOnly {
		got, err := strconv.ParseFloat(input, 64)
		if err != nil || math.IsNaN(got) || math.IsInf(got, 0) {
			return false, errNotNumeric
		}
		if !t.Answer.Valid {
			return true, nil
		}
		want, err := strconv.ParseFloat(strings.TrimSpace(t.Answer.String), 64)
		if err != nil {
			return false, nil
		}
		return numericMatch(got, want, t.NumericAccuracy.Int, t.NumericAccuracy.Valid), nil
	}

	if !t.Answer.Valid {
		return input != "", nil
	}
	return strings.EqualFold(input, strings.TrimSpace(t.Answer.String)), nil
}

func numericMatch(got, want float64, decimals int, hasDecimals bool) bool {
	diff := math.Abs(got - want)
	if hasDecimals {
		// small epsilon so that e.g. 7.005 vs 7.00 at 2 decimals is not lost to float representation
		return diff <= 0.5*math.Pow10(-decimals)+1e-12
	}
	return diff <= relativeTolerance*math.Max(math.Abs(want), 1)
}

// Grade returns the percentage of tasks passed.
func Grade(tasks []TaskTemplate, entries []TaskEntry) float64 {
	if len(tasks) == 0 {
		return 0
	}
	inTemplate := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		inTemplate[t.ID] = true
	}
	var passed int
	for _, te := range entries {
		if te.Passed && inTemplate[te.TaskTemplateID] {
			passed++
		}
	}
	return math.Round(float64(passed)/float64(len(tasks))*10000) / 100
}
