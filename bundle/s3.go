package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Source fetches bundles from an S3 bucket. The zero value uses the
// default credential chain and region from the environment; static
// credentials can be supplied for restricted buckets.
type S3Source struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	client *s3.Client
}

func (s *S3Source) getClient(ctx context.Context) (*s3.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS config: %v", ErrPermanent, err)
	}
	s.client = s3.NewFromConfig(cfg)
	return s.client, nil
}

// Fetch implements Source for s3://bucket/key locators.
func (s *S3Source) Fetch(ctx context.Context, locator, destPath string) error {
	bucket, key, err := SplitS3Locator(locator)
	if err != nil {
		return err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error(err)
	}
	defer obj.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, obj.Body); err != nil {
		return fmt.Errorf("failed to write object body: %w", err)
	}
	return nil
}

// classifyS3Error maps SDK failures onto the transient/permanent split:
// missing objects and denied access never succeed on retry, while
// throttling and server-side faults might.
func classifyS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
	}

	return fmt.Errorf("s3 fetch failed: %w", err)
}
