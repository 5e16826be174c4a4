// conntracerctl manages the conn-tracer access-control manifest: rendering,
// validation, linting, visualization, and rollout across clusters.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"

	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
	"github.com/WhizardTelemetry/eBPFConductor/internal/fleet"
	"github.com/WhizardTelemetry/eBPFConductor/internal/graph"
	"github.com/WhizardTelemetry/eBPFConductor/internal/k8s"
	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
	"github.com/WhizardTelemetry/eBPFConductor/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "conntracerctl",
		Short:         "Manage the conn-tracer access-control manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRenderCmd(),
		newValidateCmd(),
		newLintCmd(),
		newNarrowCmd(),
		newGraphCmd(),
		newApplyCmd(),
		newDeleteCmd(),
		newRolloutCmd(),
		newClusterCmd(),
	)

	return root
}

// selectManifest returns the canonical grant, or its least-privilege
// variant when --narrow is set.
func selectManifest(narrow bool) *rbac.Manifest {
	m := rbac.Default()
	if narrow {
		return m.Narrowed()
	}
	return m
}

func newRenderCmd() *cobra.Command {
	var (
		narrow bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the manifest as multi-document YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := selectManifest(narrow).Render()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}

	cmd.Flags().BoolVar(&narrow, "narrow", false, "render the least-privilege variant")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest.yaml>",
		Short: "Validate a manifest file against the canonical grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := rbac.Parse(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if err := m.Validate(); err != nil {
				return fmt.Errorf("validate %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [manifest.yaml]",
		Short: "Report over-broad grants (defaults to the canonical manifest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := rbac.Default()
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if m, err = rbac.Parse(data); err != nil {
					return fmt.Errorf("parse %s: %w", args[0], err)
				}
			}

			findings := m.Lint()
			if len(findings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no findings")
				return nil
			}
			for _, f := range findings {
				fmt.Fprintln(cmd.OutOrStdout(), f.String())
			}
			return fmt.Errorf("%d finding(s)", len(findings))
		},
	}
}

func newNarrowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "narrow",
		Short: "Render the least-privilege variant of the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rbac.Default().Narrowed().Render()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(output, out, 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newGraphCmd() *cobra.Command {
	var narrow bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the subject/binding/role graph in dot format",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), graph.Render(selectManifest(narrow)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&narrow, "narrow", false, "graph the least-privilege variant")
	return cmd
}

func newApplyCmd() *cobra.Command {
	var (
		narrow     bool
		kubeconfig string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the manifest to one cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clusterClient(kubeconfig)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := k8s.Apply(ctx, client, selectManifest(narrow)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&narrow, "narrow", false, "apply the least-privilege variant")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "kubeconfig file (defaults to the ambient environment)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var kubeconfig string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Retract the manifest from one cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clusterClient(kubeconfig)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := k8s.Delete(ctx, client, rbac.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}

	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "kubeconfig file (defaults to the ambient environment)")
	return cmd
}

func newRolloutCmd() *cobra.Command {
	var (
		planPath     string
		fromRegistry bool
		action       string
		narrow       bool
		parallelism  int
		audit        bool
	)

	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Apply or retract the manifest across every cluster in a plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if action != fleet.ActionApply && action != fleet.ActionDelete {
				return fmt.Errorf("unknown action %q", action)
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			var (
				db  *gorm.DB
				cfg *config.Config
			)
			if audit || fromRegistry {
				if err := config.LoadEnv(); err != nil {
					return err
				}
				cfg = config.New()
				var err error
				if db, err = store.Open(cfg); err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer store.Close(db)
			}

			var targets []fleet.Target
			if fromRegistry {
				clusters, err := store.ListClusters(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, c := range clusters {
					kc, err := store.OpenKubeconfig(cfg.AESKey, c)
					if err != nil {
						return err
					}
					targets = append(targets, fleet.Target{Name: c.Name, Kubeconfig: kc})
				}
				if len(targets) == 0 {
					return fmt.Errorf("cluster registry is empty")
				}
			} else {
				plan, err := fleet.LoadPlan(planPath)
				if err != nil {
					return err
				}
				if targets, err = plan.Targets(planPath); err != nil {
					return err
				}
			}

			var recorder fleet.Recorder = fleet.NopRecorder{}
			if audit {
				recorder = store.NewEventRecorder(db, logger)
			}

			rollout := fleet.New(parallelism, recorder, logger)
			results := rollout.Run(cmd.Context(), action, selectManifest(narrow), targets)

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", res.Cluster, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", res.Cluster)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d clusters failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "rollout.yaml", "rollout plan file")
	cmd.Flags().BoolVar(&fromRegistry, "from-registry", false, "target every cluster in the registry instead of a plan file")
	cmd.Flags().StringVar(&action, "action", fleet.ActionApply, "apply or delete")
	cmd.Flags().BoolVar(&narrow, "narrow", false, "roll out the least-privilege variant")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "concurrent cluster rollouts")
	cmd.Flags().BoolVar(&audit, "audit", false, "record rollout events in the audit store")
	return cmd
}

func newClusterCmd() *cobra.Command {
	cluster := &cobra.Command{
		Use:   "cluster",
		Short: "Manage the rollout cluster registry",
	}

	var (
		kubeconfig  string
		description string
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a cluster, sealing its kubeconfig at rest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(kubeconfig)
			if err != nil {
				return err
			}
			return withStore(func(db *gorm.DB, cfg *config.Config) error {
				return store.SaveCluster(cmd.Context(), db, cfg.AESKey, args[0], description, data)
			})
		},
	}
	add.Flags().StringVar(&kubeconfig, "kubeconfig", "", "kubeconfig file for the cluster")
	add.Flags().StringVar(&description, "description", "", "free-form description")
	_ = add.MarkFlagRequired("kubeconfig")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(db *gorm.DB, _ *config.Config) error {
				clusters, err := store.ListClusters(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, c := range clusters {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Name, c.Description)
				}
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Remove a registered cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(db *gorm.DB, _ *config.Config) error {
				return store.DeleteCluster(cmd.Context(), db, args[0])
			})
		},
	}

	cluster.AddCommand(add, list, rm)
	return cluster
}

func withStore(fn func(*gorm.DB, *config.Config) error) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg := config.New()
	db, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close(db)
	return fn(db, cfg)
}

func clusterClient(kubeconfig string) (kubernetes.Interface, error) {
	if kubeconfig == "" {
		return k8s.Client()
	}
	data, err := os.ReadFile(kubeconfig)
	if err != nil {
		return nil, err
	}
	return k8s.ClientFromKubeconfig(data)
}
