package frames

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Warning kinds recorded while resampling.
const (
	WarningStateReadFailed   = "state_read_failed"
	WarningActivityCheck     = "activity_check_failed"
	WarningNonFinitePosition = "non_finite_position"
	WarningMissingStatic     = "missing_static_info"
)

type warningInfo struct {
	count    int
	examples []string
}

// WarningAggregator collects per-agent failures during a parse and logs one
// consolidated line per kind.
type WarningAggregator struct {
	warnings map[string]*warningInfo
}

func NewWarningAggregator() *WarningAggregator {
	return &WarningAggregator{warnings: make(map[string]*warningInfo)}
}

// Add records one occurrence with an example id. Up to 3 examples are kept.
func (w *WarningAggregator) Add(kind, example string) {
	info := w.warnings[kind]
	if info == nil {
		info = &warningInfo{examples: make([]string, 0, 3)}
		w.warnings[kind] = info
	}
	info.count++
	if len(info.examples) < 3 {
		info.examples = append(info.examples, example)
	}
}

// Count returns the number of occurrences of kind.
func (w *WarningAggregator) Count(kind string) int {
	if info := w.warnings[kind]; info != nil {
		return info.count
	}
	return 0
}

// Total returns the number of occurrences across all kinds.
func (w *WarningAggregator) Total() int {
	n := 0
	for _, info := range w.warnings {
		n += info.count
	}
	return n
}

// LogAll writes one warning per kind, in kind order.
func (w *WarningAggregator) LogAll(logger *slog.Logger, attrs ...any) {
	if len(w.warnings) == 0 {
		return
	}
	kinds := make([]string, 0, len(w.warnings))
	for k := range w.warnings {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		info := w.warnings[k]
		args := append([]any{
			"kind", k,
			"count", info.count,
			"examples", formatExamples(info),
		}, attrs...)
		logger.Warn("agent reads skipped during resampling", args...)
	}
}

func formatExamples(info *warningInfo) string {
	s := strings.Join(info.examples, ", ")
	if info.count > len(info.examples) {
		s = fmt.Sprintf("%s, ... (+%d more)", s, info.count-len(info.examples))
	}
	return s
}
