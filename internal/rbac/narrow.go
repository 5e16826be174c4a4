package rbac

import rbacv1 "k8s.io/api/rbac/v1"

// ReadVerbs is what the workload cache actually needs: it only lists and
// watches resources, it never mutates them.
var ReadVerbs = []string{"get", "list", "watch"}

// narrowGroups maps each concrete API group to the watched resource kinds it
// serves. The wildcard grant in the canonical manifest collapses these into
// a single rule.
var narrowGroups = []struct {
	group     string
	resources []string
}{
	{group: "", resources: []string{"nodes", "pods", "services"}},
	{group: "apps", resources: []string{"deployments", "daemonsets", "statefulsets", "replicasets"}},
	{group: "batch", resources: []string{"jobs", "cronjobs"}},
}

// Narrowed returns a least-privilege variant of the manifest: read-only
// verbs, and one rule per concrete API group instead of the wildcard grant.
// The identity and binding are unchanged.
func (m *Manifest) Narrowed() *Manifest {
	out := Default()
	out.ServiceAccount = m.ServiceAccount
	out.ClusterRoleBinding = m.ClusterRoleBinding

	rules := make([]rbacv1.PolicyRule, 0, len(narrowGroups))
	for _, g := range narrowGroups {
		rules = append(rules, rbacv1.PolicyRule{
			APIGroups: []string{g.group},
			Resources: append([]string(nil), g.resources...),
			Verbs:     append([]string(nil), ReadVerbs...),
		})
	}
	out.ClusterRole.Rules = rules

	return out
}
