package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Client *s3.Client
var r2Bucket string

// InitR2 configures the R2 client used by the nightly webhook-log archive
// job. Optional: if R2_BUCKET_NAME is unset the archive job is skipped.
func InitR2() error {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	r2Bucket = os.Getenv("R2_BUCKET_NAME")
	if r2Bucket == "" {
		return nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg)
	return nil
}

// R2Enabled reports whether archive uploads are configured.
func R2Enabled() bool {
	return r2Client != nil
}

// UploadArchive writes a JSON archive object to R2.
// key is the object key (e.g. "webhook-logs/2026-08-28.json").
func UploadArchive(ctx context.Context, key string, body []byte) error {
	if r2Client == nil {
		return fmt.Errorf("R2 client not initialized")
	}

	_, err := r2Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r2Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive to R2: %w", err)
	}
	return nil
}
