package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/WhizardTelemetry/eBPFConductor/internal/rbac"
	"github.com/WhizardTelemetry/eBPFConductor/internal/store"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []store.RolloutEvent
}

func (r *captureRecorder) Record(_ context.Context, ev store.RolloutEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestRunAppliesToEveryTarget(t *testing.T) {
	clients := map[string]*fake.Clientset{
		"alpha": fake.NewSimpleClientset(),
		"beta":  fake.NewSimpleClientset(),
	}
	rec := &captureRecorder{}

	r := New(2, rec, nil)
	r.Clients = func(kubeconfig []byte) (kubernetes.Interface, error) {
		return clients[string(kubeconfig)], nil
	}

	targets := []Target{
		{Name: "alpha", Kubeconfig: []byte("alpha")},
		{Name: "beta", Kubeconfig: []byte("beta")},
	}
	results := r.Run(context.Background(), ActionApply, rbac.Default(), targets)

	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}
	for name, client := range clients {
		_, err := client.RbacV1().ClusterRoleBindings().Get(context.Background(), "conn-tracer", metav1.GetOptions{})
		assert.NoError(t, err, "cluster %s", name)
	}

	require.Len(t, rec.events, 2)
	for _, ev := range rec.events {
		assert.Equal(t, ActionApply, ev.Action)
		assert.Equal(t, "ok", ev.Outcome)
		assert.Len(t, ev.ID, 26)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	good := fake.NewSimpleClientset()
	rec := &captureRecorder{}

	r := New(1, rec, nil)
	r.Clients = func(kubeconfig []byte) (kubernetes.Interface, error) {
		if string(kubeconfig) == "bad" {
			return nil, errors.New("unreachable")
		}
		return good, nil
	}

	targets := []Target{
		{Name: "broken", Kubeconfig: []byte("bad")},
		{Name: "healthy", Kubeconfig: []byte("good")},
	}
	results := r.Run(context.Background(), ActionApply, rbac.Default(), targets)

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)

	_, err := good.RbacV1().ClusterRoles().Get(context.Background(), "conn-tracer", metav1.GetOptions{})
	assert.NoError(t, err)

	require.Len(t, rec.events, 2)
	outcomes := map[string]string{}
	for _, ev := range rec.events {
		outcomes[ev.Cluster] = ev.Outcome
	}
	assert.Equal(t, "error", outcomes["broken"])
	assert.Equal(t, "ok", outcomes["healthy"])
}

func TestRunDeleteAction(t *testing.T) {
	client := fake.NewSimpleClientset()
	ctx := context.Background()

	r := New(1, nil, nil)
	r.Clients = func([]byte) (kubernetes.Interface, error) { return client, nil }

	targets := []Target{{Name: "alpha", Kubeconfig: []byte("x")}}

	results := r.Run(ctx, ActionApply, rbac.Default(), targets)
	require.NoError(t, results[0].Err)

	results = r.Run(ctx, ActionDelete, rbac.Default(), targets)
	require.NoError(t, results[0].Err)

	_, err := client.RbacV1().ClusterRoles().Get(ctx, "conn-tracer", metav1.GetOptions{})
	assert.Error(t, err)
}
