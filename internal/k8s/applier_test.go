package k8s

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

func TestApplyCreatesAllRecords(t *testing.T) {
	client := fake.NewSimpleClientset()
	ctx := context.Background()

	require.NoError(t, Apply(ctx, client, rbac.Default()))

	sa, err := client.CoreV1().ServiceAccounts("kube-system").Get(ctx, "conn-tracer", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "conn-tracer", sa.Name)

	role, err := client.RbacV1().ClusterRoles().Get(ctx, "conn-tracer", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, role.Rules, 1)
	assert.Equal(t, []string{"*"}, role.Rules[0].Verbs)

	binding, err := client.RbacV1().ClusterRoleBindings().Get(ctx, "conn-tracer", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "conn-tracer", binding.RoleRef.Name)
}

func TestApplyIsIdempotent(t *testing.T) {
	client := fake.NewSimpleClientset()
	ctx := context.Background()

	require.NoError(t, Apply(ctx, client, rbac.Default()))
	require.NoError(t, Apply(ctx, client, rbac.Default()))
}

func TestApplyUpdatesExistingRules(t *testing.T) {
	client := fake.NewSimpleClientset()
	ctx := context.Background()

	require.NoError(t, Apply(ctx, client, rbac.Default()))
	require.NoError(t, Apply(ctx, client, rbac.Default().Narrowed()))

	role, err := client.RbacV1().ClusterRoles().Get(ctx, "conn-tracer", metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, role.Rules, 3)
	assert.Equal(t, []string{"get", "list", "watch"}, role.Rules[0].Verbs)
}

func TestApplyRecreatesBindingWhenRoleRefMoves(t *testing.T) {
	client := fake.NewSimpleClientset(&rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: "conn-tracer", Namespace: "kube-system"},
		RoleRef:    rbacv1.RoleRef{APIGroup: "rbac.authorization.k8s.io", Kind: "ClusterRole", Name: "view"},
	})
	ctx := context.Background()

	require.NoError(t, Apply(ctx, client, rbac.Default()))

	binding, err := client.RbacV1().ClusterRoleBindings().Get(ctx, "conn-tracer", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "conn-tracer", binding.RoleRef.Name)
}

func TestDeleteIsIdempotent(t *testing.T) {
	client := fake.NewSimpleClientset()
	ctx := context.Background()

	require.NoError(t, Apply(ctx, client, rbac.Default()))
	require.NoError(t, Delete(ctx, client, rbac.Default()))
	require.NoError(t, Delete(ctx, client, rbac.Default()))

	_, err := client.RbacV1().ClusterRoles().Get(ctx, "conn-tracer", metav1.GetOptions{})
	assert.Error(t, err)
}
