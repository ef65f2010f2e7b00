package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tfpilot-io/tfpilot/internal/logging"
)

// Uploader archives plan artifacts to an S3 bucket for audit. Each upload
// lands under <prefix>/<stack>/<timestamp>/.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewUploader builds an uploader against the given bucket using the
// ambient AWS configuration.
func NewUploader(ctx context.Context, bucket, prefix, region, profile string) (*Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// UploadPlan stores the plan artifact and the stack document it was
// computed from. planFile may be empty for cloud plans, which have no
// local artifact.
func (u *Uploader) UploadPlan(ctx context.Context, stackName, planFile, stackJSON string) error {
	stamp := time.Now().UTC().Format("20060102T150405Z")

	if planFile != "" {
		raw, err := os.ReadFile(planFile)
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}
		if err := u.put(ctx, u.key(stackName, stamp, "plan.tfplan"), raw); err != nil {
			return err
		}
	}

	if err := u.put(ctx, u.key(stackName, stamp, "stack.tf.json"), []byte(stackJSON)); err != nil {
		return err
	}

	logging.Info("plan archived", "bucket", u.bucket, "stack", stackName, "timestamp", stamp)
	return nil
}

func (u *Uploader) key(stackName, stamp, file string) string {
	return path.Join(u.prefix, stackName, stamp, file)
}

func (u *Uploader) put(ctx context.Context, key string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}
