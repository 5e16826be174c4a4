package drift

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

// writeFileAtomic replaces path in one rename so the watcher never observes
// a half-written manifest.
func writeFileAtomic(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func writeCanonical(t *testing.T, path string) {
	t.Helper()
	data, err := rbac.Default().Render()
	require.NoError(t, err)
	writeFileAtomic(t, path, data)
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for drift event")
		return Event{}
	}
}

func TestWatchReportsDriftAndRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn-tracer-rbac.yaml")
	writeCanonical(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, nil)
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	// Tamper: widen the subject to a different namespace.
	data, err := rbac.Default().Render()
	require.NoError(t, err)
	tampered := strings.ReplaceAll(string(data), "namespace: kube-system", "namespace: default")
	writeFileAtomic(t, path, []byte(tampered))

	ev := waitEvent(t, ch)
	assert.Equal(t, ManifestDrifted, ev.Type)
	assert.NotEmpty(t, ev.ID)
	assert.Contains(t, ev.Detail, "namespace")

	writeCanonical(t, path)
	ev = waitEvent(t, ch)
	assert.Equal(t, ManifestRestored, ev.Type)
}

func TestWatchReportsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn-tracer-rbac.yaml")
	writeCanonical(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, nil)
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	writeFileAtomic(t, path, []byte("kind: ConfigMap\n"))

	ev := waitEvent(t, ch)
	assert.Equal(t, ManifestInvalid, ev.Type)
}

func TestWatchReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn-tracer-rbac.yaml")
	writeCanonical(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, nil)
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	ev := waitEvent(t, ch)
	assert.Equal(t, ManifestRemoved, ev.Type)
}

func TestWatchReportsMissingFileAtStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn-tracer-rbac.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(path, nil)
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	ev := waitEvent(t, ch)
	assert.Equal(t, ManifestRemoved, ev.Type)
}

func TestWatchChannelClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn-tracer-rbac.yaml")
	writeCanonical(t, path)

	ctx, cancel := context.WithCancel(context.Background())

	w := New(path, nil)
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
