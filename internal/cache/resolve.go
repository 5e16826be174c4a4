package cache

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// resolvePodWorkload walks the pod's controller chain to its top-level
// workload: Pod -> ReplicaSet -> Deployment, Pod -> Job -> CronJob, and so
// on. A pod without a controller is its own workload. Results are memoized
// until the pod is deleted.
func (c *Cache) resolvePodWorkload(pod *corev1.Pod) Workload {
	key := pod.Namespace + "/" + pod.Name

	c.mu.RLock()
	cached, ok := c.podOwners[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	workload := Workload{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Kind:      "Pod",
	}

	ref := controllerRef(pod.OwnerReferences)
	for ref != nil {
		workload.Name = ref.Name
		workload.Kind = ref.Kind
		ref = c.controllerOfOwner(ref, pod.Namespace)
	}

	c.mu.Lock()
	c.podOwners[key] = workload
	c.mu.Unlock()

	return workload
}

// controllerOfOwner looks up an owner in the appropriate lister and returns
// its own controlling reference, if any. Owners of kinds the cache does not
// watch terminate the walk.
func (c *Cache) controllerOfOwner(ref *metav1.OwnerReference, namespace string) *metav1.OwnerReference {
	var refs []metav1.OwnerReference

	switch ref.Kind {
	case "ReplicaSet":
		rs, err := c.replicasets.ReplicaSets(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = rs.OwnerReferences
	case "Deployment":
		d, err := c.deployments.Deployments(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = d.OwnerReferences
	case "StatefulSet":
		s, err := c.statefulsets.StatefulSets(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = s.OwnerReferences
	case "DaemonSet":
		d, err := c.daemonsets.DaemonSets(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = d.OwnerReferences
	case "Job":
		j, err := c.jobs.Jobs(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = j.OwnerReferences
	case "CronJob":
		cj, err := c.cronjobs.CronJobs(namespace).Get(ref.Name)
		if err != nil {
			return nil
		}
		refs = cj.OwnerReferences
	default:
		return nil
	}

	return controllerRef(refs)
}

func controllerRef(refs []metav1.OwnerReference) *metav1.OwnerReference {
	for i := range refs {
		if refs[i].Controller != nil && *refs[i].Controller {
			return &refs[i]
		}
	}
	return nil
}
