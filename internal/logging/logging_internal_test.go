package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailyWriter_CreatesFileNamedForToday(t *testing.T) {
	dir := t.TempDir()
	w := newDailyWriter(dir, "autosnap.log")
	defer w.Close()

	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	expected := filepath.Join(dir, "autosnap.log."+time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(expected)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}

func TestDailyWriter_AppendsAcrossWrites(t *testing.T) {
	dir := t.TempDir()
	w := newDailyWriter(dir, "autosnap.log")
	defer w.Close()

	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	expected := filepath.Join(dir, "autosnap.log."+time.Now().Format("2006-01-02"))
	data, err := os.ReadFile(expected)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(data))
}

func TestDailyWriter_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := newDailyWriter(dir, "autosnap.log")

	_, err := w.Write([]byte("x\n"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestGuard_FlushOnNilGuardIsSafe(t *testing.T) {
	var g *Guard
	require.NoError(t, g.Flush())
}

func TestLevelFor_MapsVerbosityToZerologLevels(t *testing.T) {
	require.Equal(t, "warn", levelFor(LevelWarn).String())
	require.Equal(t, "info", levelFor(LevelInfo).String())
	require.Equal(t, "debug", levelFor(LevelDebug).String())
	require.Equal(t, "trace", levelFor(LevelTrace).String())
}
