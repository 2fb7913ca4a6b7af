package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/re-cinq/registry-cache/internal/registryref"
)

// Mirror is a best-effort off-path replication target for committed blobs.
// It is consulted after a blob has already been verified and committed to
// the filesystem store — it never participates in the correctness gate,
// only in redundancy. A failed mirror upload is logged and dropped; the
// cache is fully functional without it.
type Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewMirror builds a Mirror client using the standard AWS SDK default
// credential chain (environment, shared config, instance profile). region
// and bucket come from storage.mirror configuration.
func NewMirror(ctx context.Context, bucket, prefix, region string) (*Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("store: mirror bucket must not be empty")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: loading AWS config: %w", err)
	}

	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}

	return &Mirror{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (m *Mirror) key(repo registryref.Repository) string {
	return m.prefix + string(repo.Digest.Algorithm) + "/" + repo.Digest.Hash
}

// Upload replicates the already-committed blob at fs.BlobPath(repo) into
// the mirror bucket. Callers re-open the committed file themselves and
// pass it here, rather than Mirror re-reading from the FS store directly,
// so Mirror has no dependency on FS's layout beyond the key naming scheme.
func (m *Mirror) Upload(ctx context.Context, repo registryref.Repository, body io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key(repo)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("store: mirror upload failed: %w", err)
	}
	return nil
}
