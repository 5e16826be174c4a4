// Package fleet rolls the conn-tracer grant out to many clusters at once.
package fleet

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Plan is a declarative list of rollout targets, loaded from rollout.yaml.
type Plan struct {
	Clusters []PlanCluster `yaml:"clusters"`
}

// PlanCluster names one target and points at its kubeconfig on disk.
type PlanCluster struct {
	Name       string `yaml:"name"`
	Kubeconfig string `yaml:"kubeconfig"`
}

// LoadPlan reads and validates a rollout plan file.
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse rollout plan %s: %w", path, err)
	}

	if len(p.Clusters) == 0 {
		return nil, fmt.Errorf("rollout plan %s lists no clusters", path)
	}
	seen := map[string]bool{}
	for i, c := range p.Clusters {
		if c.Name == "" {
			return nil, fmt.Errorf("rollout plan %s: cluster %d has no name", path, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("rollout plan %s: duplicate cluster %q", path, c.Name)
		}
		seen[c.Name] = true
		if c.Kubeconfig == "" {
			return nil, fmt.Errorf("rollout plan %s: cluster %q has no kubeconfig", path, c.Name)
		}
	}

	return &p, nil
}

// Targets materializes the plan: kubeconfig paths are resolved relative to
// the plan file and read into memory.
func (p *Plan) Targets(planPath string) ([]Target, error) {
	base := filepath.Dir(planPath)

	targets := make([]Target, 0, len(p.Clusters))
	for _, c := range p.Clusters {
		path := c.Kubeconfig
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cluster %q: %w", c.Name, err)
		}
		targets = append(targets, Target{Name: c.Name, Kubeconfig: data})
	}
	return targets, nil
}
