package fleet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rollout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	path := writePlan(t, dir, `
clusters:
  - name: prod-eu
    kubeconfig: kubeconfigs/prod-eu.yaml
  - name: prod-us
    kubeconfig: /etc/kubeconfigs/prod-us.yaml
`)

	p, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, p.Clusters, 2)
	assert.Equal(t, "prod-eu", p.Clusters[0].Name)
}

func TestLoadPlanRejectsBadPlans(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: "clusters: []\n"},
		{name: "unnamed cluster", content: "clusters:\n  - kubeconfig: a.yaml\n"},
		{name: "missing kubeconfig", content: "clusters:\n  - name: prod\n"},
		{name: "duplicate name", content: "clusters:\n  - name: prod\n    kubeconfig: a.yaml\n  - name: prod\n    kubeconfig: b.yaml\n"},
		{name: "unknown field", content: "clusters:\n  - name: prod\n    kubeconfig: a.yaml\n    region: eu\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePlan(t, t.TempDir(), tt.content)
			_, err := LoadPlan(path)
			assert.Error(t, err)
		})
	}
}

func TestTargetsResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "kubeconfigs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kubeconfigs", "prod.yaml"), []byte("kubeconfig-bytes"), 0o600))

	path := writePlan(t, dir, `
clusters:
  - name: prod
    kubeconfig: kubeconfigs/prod.yaml
`)

	p, err := LoadPlan(path)
	require.NoError(t, err)

	targets, err := p.Targets(path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "prod", targets[0].Name)
	assert.Equal(t, []byte("kubeconfig-bytes"), targets[0].Kubeconfig)
}

func TestTargetsMissingKubeconfig(t *testing.T) {
	dir := t.TempDir()
	path := writePlan(t, dir, `
clusters:
  - name: prod
    kubeconfig: nope.yaml
`)

	p, err := LoadPlan(path)
	require.NoError(t, err)

	_, err = p.Targets(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cluster "prod"`)
}
