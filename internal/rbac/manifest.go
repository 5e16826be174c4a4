// Package rbac models the conn-tracer access-control manifest: the
// ServiceAccount identity, the ClusterRole permission set, and the
// ClusterRoleBinding tying the two together.
package rbac

import (
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// Name is shared by all three records.
	Name = "conn-tracer"
	// Namespace is where the workload runs.
	Namespace = "kube-system"

	// RBACAPIGroup is the API group of the role referenced by the binding.
	RBACAPIGroup = "rbac.authorization.k8s.io"

	serviceAccountKind     = "ServiceAccount"
	clusterRoleKind        = "ClusterRole"
	clusterRoleBindingKind = "ClusterRoleBinding"

	coreAPIVersion = "v1"
	rbacAPIVersion = RBACAPIGroup + "/v1"
)

// Resources is the fixed list of resource kinds the workload cache watches.
// Order matters: it is preserved through render/parse round trips.
var Resources = []string{
	"nodes",
	"pods",
	"services",
	"deployments",
	"daemonsets",
	"statefulsets",
	"replicasets",
	"jobs",
	"cronjobs",
}

// Manifest is the full record set declared by the conn-tracer manifest.
type Manifest struct {
	ServiceAccount     corev1.ServiceAccount
	ClusterRole        rbacv1.ClusterRole
	ClusterRoleBinding rbacv1.ClusterRoleBinding
}

// ServiceAccount builds the identity record.
func ServiceAccount() corev1.ServiceAccount {
	return corev1.ServiceAccount{
		TypeMeta: metav1.TypeMeta{
			APIVersion: coreAPIVersion,
			Kind:       serviceAccountKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      Name,
			Namespace: Namespace,
		},
	}
}

// ClusterRole builds the permission-set record: a single rule granting all
// verbs over all API groups for the nine watched resource kinds.
func ClusterRole() rbacv1.ClusterRole {
	return rbacv1.ClusterRole{
		TypeMeta: metav1.TypeMeta{
			APIVersion: rbacAPIVersion,
			Kind:       clusterRoleKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      Name,
			Namespace: Namespace,
		},
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{rbacv1.APIGroupAll},
				Resources: append([]string(nil), Resources...),
				Verbs:     []string{rbacv1.VerbAll},
			},
		},
	}
}

// ClusterRoleBinding builds the binding record associating the identity with
// the permission set.
func ClusterRoleBinding() rbacv1.ClusterRoleBinding {
	return rbacv1.ClusterRoleBinding{
		TypeMeta: metav1.TypeMeta{
			APIVersion: rbacAPIVersion,
			Kind:       clusterRoleBindingKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      Name,
			Namespace: Namespace,
		},
		Subjects: []rbacv1.Subject{
			{
				Kind:      serviceAccountKind,
				Name:      Name,
				Namespace: Namespace,
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: RBACAPIGroup,
			Kind:     clusterRoleKind,
			Name:     Name,
		},
	}
}

// Default returns the canonical conn-tracer manifest.
func Default() *Manifest {
	return &Manifest{
		ServiceAccount:     ServiceAccount(),
		ClusterRole:        ClusterRole(),
		ClusterRoleBinding: ClusterRoleBinding(),
	}
}
