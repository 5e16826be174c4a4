package k8s

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

// Apply creates the manifest's three records, updating any that already
// exist. The records themselves are immutable once deployed; update only
// happens when rolling out a revised grant.
func Apply(ctx context.Context, client kubernetes.Interface, m *rbac.Manifest) error {
	sa := m.ServiceAccount
	if _, err := client.CoreV1().ServiceAccounts(sa.Namespace).Create(ctx, &sa, metav1.CreateOptions{}); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("create serviceaccount %s/%s: %w", sa.Namespace, sa.Name, err)
		}
		// ServiceAccounts carry no spec worth updating; leave the existing
		// one alone so its token secrets survive.
	}

	role := m.ClusterRole
	if _, err := client.RbacV1().ClusterRoles().Create(ctx, &role, metav1.CreateOptions{}); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("create clusterrole %s: %w", role.Name, err)
		}
		existing, err := client.RbacV1().ClusterRoles().Get(ctx, role.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("get clusterrole %s: %w", role.Name, err)
		}
		existing.Rules = role.Rules
		if _, err := client.RbacV1().ClusterRoles().Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return fmt.Errorf("update clusterrole %s: %w", role.Name, err)
		}
	}

	binding := m.ClusterRoleBinding
	if _, err := client.RbacV1().ClusterRoleBindings().Create(ctx, &binding, metav1.CreateOptions{}); err != nil {
		if !apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("create clusterrolebinding %s: %w", binding.Name, err)
		}
		existing, err := client.RbacV1().ClusterRoleBindings().Get(ctx, binding.Name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("get clusterrolebinding %s: %w", binding.Name, err)
		}
		// roleRef is immutable on a live binding; recreate when it moved.
		if existing.RoleRef != binding.RoleRef {
			if err := client.RbacV1().ClusterRoleBindings().Delete(ctx, binding.Name, metav1.DeleteOptions{}); err != nil {
				return fmt.Errorf("recreate clusterrolebinding %s: %w", binding.Name, err)
			}
			if _, err := client.RbacV1().ClusterRoleBindings().Create(ctx, &binding, metav1.CreateOptions{}); err != nil {
				return fmt.Errorf("recreate clusterrolebinding %s: %w", binding.Name, err)
			}
			return nil
		}
		existing.Subjects = binding.Subjects
		if _, err := client.RbacV1().ClusterRoleBindings().Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
			return fmt.Errorf("update clusterrolebinding %s: %w", binding.Name, err)
		}
	}

	return nil
}

// Delete retracts the manifest. Records that are already gone are not an
// error, so retraction is idempotent.
func Delete(ctx context.Context, client kubernetes.Interface, m *rbac.Manifest) error {
	if err := client.RbacV1().ClusterRoleBindings().Delete(ctx, m.ClusterRoleBinding.Name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete clusterrolebinding %s: %w", m.ClusterRoleBinding.Name, err)
	}
	if err := client.RbacV1().ClusterRoles().Delete(ctx, m.ClusterRole.Name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete clusterrole %s: %w", m.ClusterRole.Name, err)
	}
	if err := client.CoreV1().ServiceAccounts(m.ServiceAccount.Namespace).Delete(ctx, m.ServiceAccount.Name, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete serviceaccount %s/%s: %w", m.ServiceAccount.Namespace, m.ServiceAccount.Name, err)
	}
	return nil
}
