package frames

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningAggregator(t *testing.T) {
	w := NewWarningAggregator()
	for i := 0; i < 5; i++ {
		w.Add(WarningStateReadFailed, example(i, 40))
	}
	w.Add(WarningNonFinitePosition, example(9, 80))

	assert.Equal(t, 5, w.Count(WarningStateReadFailed))
	assert.Equal(t, 1, w.Count(WarningNonFinitePosition))
	assert.Zero(t, w.Count(WarningActivityCheck))
	assert.Equal(t, 6, w.Total())

	var buf bytes.Buffer
	w.LogAll(slog.New(slog.NewTextHandler(&buf, nil)), "range", "[0,200)")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "kind=non_finite_position")
	assert.Contains(t, lines[1], "kind=state_read_failed")
	assert.Contains(t, lines[1], "(+2 more)")
	assert.Contains(t, lines[1], "range=[0,200)")
}

func TestWarningAggregator_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewWarningAggregator().LogAll(slog.New(slog.NewTextHandler(&buf, nil)))
	assert.Empty(t, buf.String())
}
