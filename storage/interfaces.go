package storage

import "greyhound-pipeline/models"

// FeatureStore is the interface any processed-data backend must satisfy.
type FeatureStore interface {
	Write(rows []*models.FeatureRow) error
	Close() error
}
