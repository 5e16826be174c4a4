package rbac

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	rbacv1 "k8s.io/api/rbac/v1"
)

// Validate checks the structural properties the consuming cluster relies on:
// correct kinds and metadata, a binding whose roleRef and subject match the
// declared role and identity, and a permission rule granting wildcard verbs
// and API groups over exactly the watched resource kinds.
// All violations are reported, not just the first.
func (m *Manifest) Validate() error {
	var errs *multierror.Error

	errs = multierror.Append(errs, m.validateServiceAccount()...)
	errs = multierror.Append(errs, m.validateClusterRole()...)
	errs = multierror.Append(errs, m.validateClusterRoleBinding()...)

	return errs.ErrorOrNil()
}

func (m *Manifest) validateServiceAccount() []error {
	var errs []error

	sa := &m.ServiceAccount
	if sa.Kind != serviceAccountKind || sa.APIVersion != coreAPIVersion {
		errs = append(errs, fmt.Errorf("serviceaccount: unexpected type %s/%s", sa.APIVersion, sa.Kind))
	}
	if sa.Name != Name {
		errs = append(errs, fmt.Errorf("serviceaccount: name %q, want %q", sa.Name, Name))
	}
	if sa.Namespace != Namespace {
		errs = append(errs, fmt.Errorf("serviceaccount: namespace %q, want %q", sa.Namespace, Namespace))
	}

	return errs
}

func (m *Manifest) validateClusterRole() []error {
	var errs []error

	role := &m.ClusterRole
	if role.Kind != clusterRoleKind || role.APIVersion != rbacAPIVersion {
		errs = append(errs, fmt.Errorf("clusterrole: unexpected type %s/%s", role.APIVersion, role.Kind))
	}
	if role.Name != Name {
		errs = append(errs, fmt.Errorf("clusterrole: name %q, want %q", role.Name, Name))
	}
	if len(role.Rules) != 1 {
		errs = append(errs, fmt.Errorf("clusterrole: %d rules, want exactly 1", len(role.Rules)))
		return errs
	}

	rule := role.Rules[0]
	if !equalStrings(rule.APIGroups, []string{rbacv1.APIGroupAll}) {
		errs = append(errs, fmt.Errorf("clusterrole: apiGroups %v, want [%s]", rule.APIGroups, rbacv1.APIGroupAll))
	}
	if !equalStrings(rule.Verbs, []string{rbacv1.VerbAll}) {
		errs = append(errs, fmt.Errorf("clusterrole: verbs %v, want [%s]", rule.Verbs, rbacv1.VerbAll))
	}
	if !equalStringSets(rule.Resources, Resources) {
		errs = append(errs, fmt.Errorf("clusterrole: resources %v, want exactly %v", rule.Resources, Resources))
	}

	return errs
}

func (m *Manifest) validateClusterRoleBinding() []error {
	var errs []error

	binding := &m.ClusterRoleBinding
	if binding.Kind != clusterRoleBindingKind || binding.APIVersion != rbacAPIVersion {
		errs = append(errs, fmt.Errorf("clusterrolebinding: unexpected type %s/%s", binding.APIVersion, binding.Kind))
	}
	if binding.Name != Name {
		errs = append(errs, fmt.Errorf("clusterrolebinding: name %q, want %q", binding.Name, Name))
	}

	// roleRef must point at the declared role, through the RBAC API group.
	ref := binding.RoleRef
	if ref.Kind != clusterRoleKind {
		errs = append(errs, fmt.Errorf("clusterrolebinding: roleRef kind %q, want %q", ref.Kind, clusterRoleKind))
	}
	if ref.Name != m.ClusterRole.Name {
		errs = append(errs, fmt.Errorf("clusterrolebinding: roleRef name %q does not match role %q", ref.Name, m.ClusterRole.Name))
	}
	if ref.APIGroup != RBACAPIGroup {
		errs = append(errs, fmt.Errorf("clusterrolebinding: roleRef apiGroup %q, want %q", ref.APIGroup, RBACAPIGroup))
	}

	// The sole subject must be the declared identity.
	if len(binding.Subjects) != 1 {
		errs = append(errs, fmt.Errorf("clusterrolebinding: %d subjects, want exactly 1", len(binding.Subjects)))
		return errs
	}
	subject := binding.Subjects[0]
	if subject.Kind != serviceAccountKind {
		errs = append(errs, fmt.Errorf("clusterrolebinding: subject kind %q, want %q", subject.Kind, serviceAccountKind))
	}
	if subject.Name != m.ServiceAccount.Name || subject.Namespace != m.ServiceAccount.Namespace {
		errs = append(errs, fmt.Errorf("clusterrolebinding: subject %s/%s does not match serviceaccount %s/%s",
			subject.Namespace, subject.Name, m.ServiceAccount.Namespace, m.ServiceAccount.Name))
	}

	return errs
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func equalStringSets(got, want []string) bool {
	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)
	return equalStrings(a, b)
}
