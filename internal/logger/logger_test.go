package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDomainHelpersCountByCategory(t *testing.T) {
	l := NewNop()
	defer l.Close()

	l.Database("query", zap.Int("rows", 3))
	l.Database("query")
	l.Security("login failed")
	l.Activity("project created")
	l.API("request")

	counters := l.Counters()
	assert.Equal(t, 2, counters["database"])
	assert.Equal(t, 1, counters["security"])
	assert.Equal(t, 1, counters["activity"])
	assert.Equal(t, 1, counters["api"])
}

func TestCountersReturnsCopy(t *testing.T) {
	l := NewNop()
	defer l.Close()

	l.Database("query")
	snapshot := l.Counters()
	snapshot["database"] = 999

	assert.Equal(t, 1, l.Counters()["database"], "mutating a snapshot must not affect the logger")
}

func TestNewFallsBackOnBadLevel(t *testing.T) {
	l := New(Options{Level: "chatty"})
	defer l.Close()
	// Survives construction; info is the fallback level.
	l.Info("still works")
}
