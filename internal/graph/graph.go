// Package graph renders an access-control manifest as a graphviz dot graph:
// subject -> binding -> role -> access rules.
package graph

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
)

// Render builds the dot representation of the manifest.
func Render(m *rbac.Manifest) string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("newrank", "true")

	subject := newSubjectNode(g, m.ServiceAccount.Namespace, m.ServiceAccount.Name)
	binding := newBindingNode(g, m.ClusterRoleBinding.Name)
	role := newRoleNode(g, m.ClusterRole.Name)
	rules := newRulesNode(g, m)

	g.Edge(subject, binding).Attr("dir", "back")
	g.Edge(binding, role)
	g.Edge(role, rules)

	return g.String()
}

func newSubjectNode(g *dot.Graph, namespace, name string) dot.Node {
	return g.Node("sa-" + namespace + "/" + name).
		Box().
		Attr("label", fmt.Sprintf("%s\n(ServiceAccount)", name)).
		Attr("style", "filled").
		Attr("fillcolor", "#2f6de1").
		Attr("fontcolor", "#f0f0f0")
}

func newBindingNode(g *dot.Graph, name string) dot.Node {
	return g.Node("crb-" + name).
		Attr("label", name).
		Attr("shape", "doubleoctagon").
		Attr("style", "filled").
		Attr("fillcolor", "#ffcc00").
		Attr("fontcolor", "#030303")
}

func newRoleNode(g *dot.Graph, name string) dot.Node {
	return g.Node("cr-" + name).
		Attr("label", name).
		Attr("shape", "doubleoctagon").
		Attr("style", "filled").
		Attr("fillcolor", "#ff9900").
		Attr("fontcolor", "#030303")
}

func newRulesNode(g *dot.Graph, m *rbac.Manifest) dot.Node {
	var html strings.Builder
	html.WriteString(boldLine("access rules"))
	for _, rule := range m.ClusterRole.Rules {
		line := fmt.Sprintf("%s %s.[%s]",
			strings.Join(rule.Verbs, ","),
			strings.Join(rule.Resources, ","),
			strings.Join(rule.APIGroups, ","))
		html.WriteString(regularLine(line))
	}
	return g.Node("rules-" + m.ClusterRole.Name).
		Attr("label", dot.HTML(html.String())).
		Attr("shape", "note")
}

func regularLine(str string) string {
	return escapeHTML(str) + `<br align="left"/>`
}

func boldLine(str string) string {
	return "<b>" + escapeHTML(str) + "</b>" + `<br align="left"/>`
}

func escapeHTML(str string) string {
	str = strings.ReplaceAll(str, `<`, `&lt;`)
	str = strings.ReplaceAll(str, `>`, `&gt;`)
	str = strings.ReplaceAll(str, ` `, `&nbsp;`)
	return str
}
