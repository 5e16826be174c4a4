package rbac

import (
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const docSeparator = "---\n"

// Render serializes the manifest as three YAML documents separated by "---",
// in declaration order: ServiceAccount, ClusterRole, ClusterRoleBinding.
func (m *Manifest) Render() ([]byte, error) {
	var b strings.Builder

	for i, obj := range []interface{}{&m.ServiceAccount, &m.ClusterRole, &m.ClusterRoleBinding} {
		if i > 0 {
			b.WriteString(docSeparator)
		}
		out, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("marshal document %d: %w", i, err)
		}
		b.Write(out)
	}

	return []byte(b.String()), nil
}

// Parse decodes a multi-document YAML manifest into its three records.
// Document order is not significant. Duplicate or unknown kinds, malformed
// documents, and missing records are rejected.
func Parse(data []byte) (*Manifest, error) {
	var (
		m    Manifest
		seen = map[string]bool{}
	)

	for i, doc := range splitDocuments(data) {
		var probe metav1.TypeMeta
		if err := yaml.Unmarshal([]byte(doc), &probe); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if probe.Kind == "" {
			return nil, fmt.Errorf("document %d: missing kind", i)
		}
		if seen[probe.Kind] {
			return nil, fmt.Errorf("document %d: duplicate %s", i, probe.Kind)
		}
		seen[probe.Kind] = true

		var err error
		switch probe.Kind {
		case serviceAccountKind:
			err = yaml.UnmarshalStrict([]byte(doc), &m.ServiceAccount)
		case clusterRoleKind:
			err = yaml.UnmarshalStrict([]byte(doc), &m.ClusterRole)
		case clusterRoleBindingKind:
			err = yaml.UnmarshalStrict([]byte(doc), &m.ClusterRoleBinding)
		default:
			return nil, fmt.Errorf("document %d: unexpected kind %q", i, probe.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("document %d (%s): %w", i, probe.Kind, err)
		}
	}

	for _, kind := range []string{serviceAccountKind, clusterRoleKind, clusterRoleBindingKind} {
		if !seen[kind] {
			return nil, fmt.Errorf("manifest is missing a %s document", kind)
		}
	}

	return &m, nil
}

// splitDocuments breaks a YAML stream on "---" separator lines and drops
// empty documents.
func splitDocuments(data []byte) []string {
	var (
		docs    []string
		current []string
	)

	flush := func() {
		doc := strings.TrimSpace(strings.Join(current, "\n"))
		if doc != "" {
			docs = append(docs, doc)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimRight(line, " \t") == "---" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return docs
}
