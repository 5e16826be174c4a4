package rbac

import (
	"fmt"

	rbacv1 "k8s.io/api/rbac/v1"
)

// Finding is a single lint observation about a permission rule.
type Finding struct {
	Rule    int
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("rule %d: %s", f.Rule, f.Message)
}

// Lint reports over-broad grants in the ClusterRole. Unlike Validate, a
// finding is advisory: the canonical manifest itself lints dirty because it
// grants wildcard verbs and API groups where the workload only reads.
func (m *Manifest) Lint() []Finding {
	var findings []Finding

	for i, rule := range m.ClusterRole.Rules {
		if contains(rule.APIGroups, rbacv1.APIGroupAll) {
			findings = append(findings, Finding{
				Rule:    i,
				Message: "grants all API groups; the watched kinds span only core, apps and batch",
			})
		}
		if contains(rule.Verbs, rbacv1.VerbAll) {
			findings = append(findings, Finding{
				Rule:    i,
				Message: "grants all verbs; the workload cache only needs get, list and watch",
			})
			continue
		}
		for _, verb := range rule.Verbs {
			if !contains(ReadVerbs, verb) {
				findings = append(findings, Finding{
					Rule:    i,
					Message: fmt.Sprintf("grants write verb %q to a read-only workload", verb),
				})
			}
		}
	}

	return findings
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
