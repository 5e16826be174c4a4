package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/WhizardTelemetry/eBPFConductor/internal/crypto"
)

// SaveCluster registers a rollout target, sealing its kubeconfig before it
// is written. An existing cluster with the same name is updated in place.
func SaveCluster(ctx context.Context, db *gorm.DB, key []byte, name, description string, kubeconfig []byte) error {
	sealed, err := crypto.Encrypt(key, kubeconfig)
	if err != nil {
		return fmt.Errorf("seal kubeconfig for %q: %w", name, err)
	}

	cluster := Cluster{
		Name:                name,
		Description:         description,
		EncryptedKubeconfig: sealed,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "encrypted_kubeconfig", "updated_at"}),
	}).Create(&cluster).Error
}

// ListClusters returns all registered clusters, kubeconfigs still sealed.
func ListClusters(ctx context.Context, db *gorm.DB) ([]Cluster, error) {
	var clusters []Cluster
	if err := db.WithContext(ctx).Order("name").Find(&clusters).Error; err != nil {
		return nil, err
	}
	return clusters, nil
}

// DeleteCluster removes a registered cluster by name.
func DeleteCluster(ctx context.Context, db *gorm.DB, name string) error {
	return db.WithContext(ctx).Where("name = ?", name).Delete(&Cluster{}).Error
}

// OpenKubeconfig unseals a registered cluster's kubeconfig.
func OpenKubeconfig(key []byte, c Cluster) ([]byte, error) {
	data, err := crypto.Decrypt(key, c.EncryptedKubeconfig)
	if err != nil {
		return nil, fmt.Errorf("unseal kubeconfig for %q: %w", c.Name, err)
	}
	return data, nil
}
