// Package cache maintains the workload cache the conn-tracer grant exists
// for: shared informers over the nine watched resource kinds, an owner-chain
// resolver from pods to their top-level controllers, and an address index
// mapping pod, node and service addresses to workloads.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	appslisters "k8s.io/client-go/listers/apps/v1"
	batchlisters "k8s.io/client-go/listers/batch/v1"
	corelisters "k8s.io/client-go/listers/core/v1"
	toolscache "k8s.io/client-go/tools/cache"
)

// Workload identifies the top-level controller behind an address.
type Workload struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
}

// NodeNamespace is the synthetic namespace recorded for node addresses,
// which have no namespace of their own.
const NodeNamespace = "node"

// Cache watches the nine workload resource kinds and answers address and
// pod lookups from local state only.
type Cache struct {
	factory informers.SharedInformerFactory
	logger  *slog.Logger

	pods         corelisters.PodLister
	nodes        corelisters.NodeLister
	services     corelisters.ServiceLister
	replicasets  appslisters.ReplicaSetLister
	deployments  appslisters.DeploymentLister
	statefulsets appslisters.StatefulSetLister
	daemonsets   appslisters.DaemonSetLister
	jobs         batchlisters.JobLister
	cronjobs     batchlisters.CronJobLister

	mu        sync.RWMutex
	byAddress map[string]Workload
	// podOwners memoizes resolved pods, keyed namespace/name, together with
	// the addresses attributed to each pod so removals are exact.
	podOwners map[string]Workload
	podAddrs  map[string][]string
	svcAddrs  map[string][]string
	nodeAddrs map[string][]string

	synced []toolscache.InformerSynced
}

// New wires up informers for all nine kinds. Run must be called before the
// cache answers lookups.
func New(client kubernetes.Interface, resync time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	factory := informers.NewSharedInformerFactory(client, resync)

	c := &Cache{
		factory:      factory,
		logger:       logger,
		pods:         factory.Core().V1().Pods().Lister(),
		nodes:        factory.Core().V1().Nodes().Lister(),
		services:     factory.Core().V1().Services().Lister(),
		replicasets:  factory.Apps().V1().ReplicaSets().Lister(),
		deployments:  factory.Apps().V1().Deployments().Lister(),
		statefulsets: factory.Apps().V1().StatefulSets().Lister(),
		daemonsets:   factory.Apps().V1().DaemonSets().Lister(),
		jobs:         factory.Batch().V1().Jobs().Lister(),
		cronjobs:     factory.Batch().V1().CronJobs().Lister(),
		byAddress:    make(map[string]Workload),
		podOwners:    make(map[string]Workload),
		podAddrs:     make(map[string][]string),
		svcAddrs:     make(map[string][]string),
		nodeAddrs:    make(map[string][]string),
	}

	podInformer := factory.Core().V1().Pods().Informer()
	nodeInformer := factory.Core().V1().Nodes().Informer()
	svcInformer := factory.Core().V1().Services().Informer()

	podInformer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    c.onPod,
		UpdateFunc: func(_, obj interface{}) { c.onPod(obj) },
		DeleteFunc: c.onPodDelete,
	})
	nodeInformer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    c.onNode,
		UpdateFunc: func(_, obj interface{}) { c.onNode(obj) },
		DeleteFunc: c.onNodeDelete,
	})
	svcInformer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    c.onService,
		UpdateFunc: func(_, obj interface{}) { c.onService(obj) },
		DeleteFunc: c.onServiceDelete,
	})

	c.synced = []toolscache.InformerSynced{
		podInformer.HasSynced,
		nodeInformer.HasSynced,
		svcInformer.HasSynced,
		factory.Apps().V1().ReplicaSets().Informer().HasSynced,
		factory.Apps().V1().Deployments().Informer().HasSynced,
		factory.Apps().V1().StatefulSets().Informer().HasSynced,
		factory.Apps().V1().DaemonSets().Informer().HasSynced,
		factory.Batch().V1().Jobs().Informer().HasSynced,
		factory.Batch().V1().CronJobs().Informer().HasSynced,
	}

	return c
}

// Run starts the informers, waits for the initial sync, then blocks until
// the context is cancelled.
func (c *Cache) Run(ctx context.Context) error {
	c.logger.Info("starting workload cache")
	c.factory.Start(ctx.Done())

	if !toolscache.WaitForCacheSync(ctx.Done(), c.synced...) {
		return fmt.Errorf("workload cache sync interrupted")
	}
	c.logger.Info("workload cache sync complete")

	<-ctx.Done()
	return nil
}

// WaitForSync blocks until every informer has completed its initial list.
func (c *Cache) WaitForSync(ctx context.Context) error {
	if !toolscache.WaitForCacheSync(ctx.Done(), c.synced...) {
		return fmt.Errorf("workload cache sync interrupted")
	}
	return nil
}

// Lookup resolves an IP or node address to the workload behind it.
func (c *Cache) Lookup(address string) (Workload, bool) {
	c.mu.RLock()
	w, ok := c.byAddress[address]
	c.mu.RUnlock()

	if ok {
		lookupsTotal.WithLabelValues("hit").Inc()
	} else {
		lookupsTotal.WithLabelValues("miss").Inc()
	}
	return w, ok
}

// Addresses returns a copy of the whole address index.
func (c *Cache) Addresses() map[string]Workload {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Workload, len(c.byAddress))
	for addr, w := range c.byAddress {
		out[addr] = w
	}
	return out
}

func (c *Cache) onPod(obj interface{}) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return
	}

	workload := c.resolvePodWorkload(pod)

	var addrs []string
	for _, ip := range pod.Status.PodIPs {
		if ip.IP == "" {
			c.logger.Debug("pod IP is empty, skipping", "pod", pod.Name)
			continue
		}
		addrs = append(addrs, ip.IP)
	}

	key := pod.Namespace + "/" + pod.Name
	c.mu.Lock()
	c.replaceAddrs(c.podAddrs, key, addrs, workload)
	c.mu.Unlock()
}

func (c *Cache) onPodDelete(obj interface{}) {
	pod, ok := podFromTombstone(obj)
	if !ok {
		return
	}

	key := pod.Namespace + "/" + pod.Name
	c.mu.Lock()
	c.replaceAddrs(c.podAddrs, key, nil, Workload{})
	delete(c.podOwners, key)
	c.mu.Unlock()
}

func (c *Cache) onNode(obj interface{}) {
	node, ok := obj.(*corev1.Node)
	if !ok {
		return
	}

	workload := Workload{Name: node.Name, Namespace: NodeNamespace, Kind: "Node"}
	var addrs []string
	for _, addr := range node.Status.Addresses {
		if addr.Address != "" {
			addrs = append(addrs, addr.Address)
		}
	}

	c.mu.Lock()
	c.replaceAddrs(c.nodeAddrs, node.Name, addrs, workload)
	c.mu.Unlock()
}

func (c *Cache) onNodeDelete(obj interface{}) {
	node, ok := nodeFromTombstone(obj)
	if !ok {
		return
	}

	c.mu.Lock()
	c.replaceAddrs(c.nodeAddrs, node.Name, nil, Workload{})
	c.mu.Unlock()
}

func (c *Cache) onService(obj interface{}) {
	svc, ok := obj.(*corev1.Service)
	if !ok {
		return
	}

	workload := Workload{Name: svc.Name, Namespace: svc.Namespace, Kind: "Service"}
	var addrs []string
	for _, ip := range svc.Spec.ClusterIPs {
		// Headless services carry the literal "None".
		if ip == "" || ip == corev1.ClusterIPNone {
			continue
		}
		addrs = append(addrs, ip)
	}

	key := svc.Namespace + "/" + svc.Name
	c.mu.Lock()
	c.replaceAddrs(c.svcAddrs, key, addrs, workload)
	c.mu.Unlock()
}

func (c *Cache) onServiceDelete(obj interface{}) {
	svc, ok := serviceFromTombstone(obj)
	if !ok {
		return
	}

	key := svc.Namespace + "/" + svc.Name
	c.mu.Lock()
	c.replaceAddrs(c.svcAddrs, key, nil, Workload{})
	c.mu.Unlock()
}

// replaceAddrs swaps the address set attributed to one owner key, keeping
// byAddress consistent. Caller holds the write lock.
func (c *Cache) replaceAddrs(index map[string][]string, key string, addrs []string, w Workload) {
	for _, old := range index[key] {
		delete(c.byAddress, old)
	}
	if len(addrs) == 0 {
		delete(index, key)
	} else {
		index[key] = addrs
		for _, addr := range addrs {
			c.byAddress[addr] = w
		}
	}
	addressIndexSize.Set(float64(len(c.byAddress)))
}

func podFromTombstone(obj interface{}) (*corev1.Pod, bool) {
	if pod, ok := obj.(*corev1.Pod); ok {
		return pod, true
	}
	if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		pod, ok := tombstone.Obj.(*corev1.Pod)
		return pod, ok
	}
	return nil, false
}

func nodeFromTombstone(obj interface{}) (*corev1.Node, bool) {
	if node, ok := obj.(*corev1.Node); ok {
		return node, true
	}
	if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		node, ok := tombstone.Obj.(*corev1.Node)
		return node, ok
	}
	return nil, false
}

func serviceFromTombstone(obj interface{}) (*corev1.Service, bool) {
	if svc, ok := obj.(*corev1.Service); ok {
		return svc, true
	}
	if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		svc, ok := tombstone.Obj.(*corev1.Service)
		return svc, ok
	}
	return nil, false
}
