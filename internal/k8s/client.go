// Package k8s builds cluster clients and applies or retracts the conn-tracer
// access-control records.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientFromKubeconfig creates a clientset from raw kubeconfig bytes, as
// stored (encrypted) in the cluster registry.
func ClientFromKubeconfig(kubeconfig []byte) (kubernetes.Interface, error) {
	cfg, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("build REST config: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}

// Client creates a clientset for the surrounding environment: in-cluster
// config when running as a pod, otherwise the default kubeconfig chain.
func Client() (kubernetes.Interface, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return kubernetes.NewForConfig(cfg)
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("build REST config: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}
