// Package minio provides object storage access for uploaded documents. All
// documents live in a single bucket, keyed by their storage path.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// Client provides access to the document bucket in MinIO.
type Client struct {
	config      *Config
	minioClient *minio.Client
	logger      *logrus.Logger
	mu          sync.RWMutex
	connected   bool
}

// NewClient creates a new MinIO client.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		config:    config,
		logger:    logger,
		connected: false,
	}, nil
}

// Connect establishes the connection and ensures the document bucket exists.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	minioClient, err := minio.New(c.config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.config.AccessKey, c.config.SecretKey, ""),
		Secure: c.config.UseSSL,
		Region: c.config.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := minioClient.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{
			Region: c.config.Region,
		}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", c.config.Bucket, err)
		}
		c.logger.WithField("bucket", c.config.Bucket).Info("Bucket created")
	}

	c.minioClient = minioClient
	c.connected = true
	c.logger.Info("Connected to MinIO")
	return nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.minioClient = nil
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck checks the health of the MinIO connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.minioClient == nil {
		return fmt.Errorf("not connected to MinIO")
	}

	_, err := c.minioClient.BucketExists(ctx, c.config.Bucket)
	return err
}

// Download fetches a document's full content by its storage path.
func (c *Client) Download(ctx context.Context, storagePath string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return nil, fmt.Errorf("not connected to MinIO")
	}

	obj, err := c.minioClient.GetObject(ctx, c.config.Bucket, storagePath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", storagePath, err)
	}
	defer func() { _ = obj.Close() }()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", storagePath, err)
	}

	c.logger.WithFields(logrus.Fields{
		"storage_path": storagePath,
		"bytes":        len(content),
	}).Debug("Document downloaded")
	return content, nil
}

// Upload stores a document's content at the given storage path.
func (c *Client) Upload(ctx context.Context, storagePath string, content []byte, contentType string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected to MinIO")
	}

	_, err := c.minioClient.PutObject(ctx, c.config.Bucket, storagePath,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", storagePath, err)
	}

	c.logger.WithFields(logrus.Fields{
		"storage_path": storagePath,
		"bytes":        len(content),
	}).Info("Document uploaded")
	return nil
}

// Delete removes a document from storage.
func (c *Client) Delete(ctx context.Context, storagePath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected to MinIO")
	}

	if err := c.minioClient.RemoveObject(ctx, c.config.Bucket, storagePath,
		minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", storagePath, err)
	}

	c.logger.WithField("storage_path", storagePath).Info("Document deleted from storage")
	return nil
}

// Exists reports whether a document is present at the storage path.
func (c *Client) Exists(ctx context.Context, storagePath string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return false, fmt.Errorf("not connected to MinIO")
	}

	_, err := c.minioClient.StatObject(ctx, c.config.Bucket, storagePath, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %q: %w", storagePath, err)
	}
	return true, nil
}
