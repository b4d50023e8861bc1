package lottery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	mc.StartRound(2)
	mc.StartRound(1)

	m, ok := mc.Get(2)
	require.True(t, ok)
	assert.Equal(t, RoundRunning, m.Status)
	assert.Equal(t, now, m.StartTime)

	now = now.Add(1500 * time.Millisecond)
	mc.EndRound(2, RoundResolved, &RoundReport{
		Round:   2,
		Entries: 4,
		Winners: []Winner{{UserID: 1}, {UserID: 2}},
		Failed:  1,
	})
	mc.EndRound(1, RoundNoEntries, nil)

	m, ok = mc.Get(2)
	require.True(t, ok)
	assert.Equal(t, RoundResolved, m.Status)
	assert.Equal(t, 1500*time.Millisecond, m.Duration)
	assert.Equal(t, 4, m.Entries)
	assert.Equal(t, 2, m.Winners)
	assert.Equal(t, 1, m.Failed)

	all := mc.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Round)
	assert.Equal(t, RoundNoEntries, all[0].Status)
	assert.Equal(t, 2, all[1].Round)

	// Ending an unknown round is ignored.
	mc.EndRound(9, RoundFailed, nil)
	_, ok = mc.Get(9)
	assert.False(t, ok)
}
