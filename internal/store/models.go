// Package store persists the cluster registry and the rollout audit trail.
package store

import "time"

// Cluster is a registered rollout target. Its kubeconfig is sealed with
// AES-GCM before it touches the database.
type Cluster struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	Name                string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Description         string    `gorm:"size:512" json:"description"`
	EncryptedKubeconfig []byte    `gorm:"type:bytea" json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// RolloutEvent records one apply or delete attempt against one cluster.
type RolloutEvent struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"` // ULID
	Cluster   string    `gorm:"size:128;index" json:"cluster"`
	Action    string    `gorm:"size:16" json:"action"` // apply, delete
	Outcome   string    `gorm:"size:16" json:"outcome"` // ok, error
	Detail    string    `gorm:"size:1024" json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
