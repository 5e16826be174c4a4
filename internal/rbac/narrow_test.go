package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNarrowedSplitsByAPIGroup(t *testing.T) {
	n := Default().Narrowed()

	require.Len(t, n.ClusterRole.Rules, 3)

	assert.Equal(t, []string{""}, n.ClusterRole.Rules[0].APIGroups)
	assert.Equal(t, []string{"nodes", "pods", "services"}, n.ClusterRole.Rules[0].Resources)

	assert.Equal(t, []string{"apps"}, n.ClusterRole.Rules[1].APIGroups)
	assert.Equal(t, []string{"deployments", "daemonsets", "statefulsets", "replicasets"}, n.ClusterRole.Rules[1].Resources)

	assert.Equal(t, []string{"batch"}, n.ClusterRole.Rules[2].APIGroups)
	assert.Equal(t, []string{"jobs", "cronjobs"}, n.ClusterRole.Rules[2].Resources)

	for _, rule := range n.ClusterRole.Rules {
		assert.Equal(t, []string{"get", "list", "watch"}, rule.Verbs)
	}

	// Identity and binding are untouched.
	assert.Equal(t, Default().ServiceAccount, n.ServiceAccount)
	assert.Equal(t, Default().ClusterRoleBinding, n.ClusterRoleBinding)
}

func TestNarrowedCoversEveryResource(t *testing.T) {
	n := Default().Narrowed()

	var covered []string
	for _, rule := range n.ClusterRole.Rules {
		covered = append(covered, rule.Resources...)
	}
	assert.ElementsMatch(t, Resources, covered)
}

func TestNarrowedLintsClean(t *testing.T) {
	assert.Empty(t, Default().Narrowed().Lint())
}

func TestCanonicalManifestLintsDirty(t *testing.T) {
	findings := Default().Lint()
	require.Len(t, findings, 2)
	assert.Contains(t, findings[0].Message, "all API groups")
	assert.Contains(t, findings[1].Message, "all verbs")
}

func TestLintFlagsWriteVerbs(t *testing.T) {
	m := Default().Narrowed()
	m.ClusterRole.Rules[0].Verbs = []string{"get", "delete"}

	findings := m.Lint()
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, `write verb "delete"`)
}
