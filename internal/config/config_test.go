package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEXIFLOW_BATCH_SIZE", "")
	cfg := Load()
	require.Equal(t, 10, cfg.BatchSize)
	require.Equal(t, 15, cfg.CandidateCount)
	require.Equal(t, 30*time.Minute, cfg.QuickPhaseTTL)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_DUR", "90s")
	require.Equal(t, 90*time.Second, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "45")
	require.Equal(t, 45*time.Second, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "soon")
	require.Equal(t, time.Second, getenvDuration("X_DUR", time.Second))
}

func TestGetenvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "ten")
	require.Equal(t, 7, getenvInt("X_INT", 7))
}
