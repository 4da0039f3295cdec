// Package statement builds restaurant payout reports and stores CSV exports.
package statement

import (
	"context"
	"fmt"

	"livraison-be/internal/config"
)

// Disk stores finished statement files.
type Disk interface {
	Put(ctx context.Context, path string, content []byte, contentType string) error
	// URL is where a stored file can be fetched from.
	URL(path string) string
}

// NewDisk picks the driver named by STORAGE_DISK.
func NewDisk(ctx context.Context, cfg *config.Config) (Disk, error) {
	switch cfg.StorageDisk {
	case "", "local":
		return newLocalDisk(cfg.StoragePath), nil
	case "s3":
		return newS3Disk(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			Endpoint: cfg.S3Endpoint,
		})
	}
	return nil, fmt.Errorf("statement: unknown storage disk %q", cfg.StorageDisk)
}
