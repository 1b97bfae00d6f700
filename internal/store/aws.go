package store

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-logr/logr"
)

type PutObjectAPI interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type CreateInvalidationAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// Mirror copies persisted artifacts to remote storage under Prefix and
// invalidates any cached copy of the same key.
type Mirror struct {
	Uploader    Uploader
	Invalidator Invalidator
	Prefix      string
}

func (m *Mirror) Publish(ctx context.Context, params UploadParams) error {
	params.Name = path.Join(m.Prefix, params.Name)
	if err := m.Uploader.Upload(ctx, params); err != nil {
		return err
	}
	if m.Invalidator == nil {
		return nil
	}
	return m.Invalidator.Invalidate(ctx, []string{"/" + params.Name})
}

type AWSMirrorParams struct {
	S3     PutObjectAPI
	Bucket string
	Prefix string

	// CloudFront may be nil when Distribution is empty.
	CloudFront   CreateInvalidationAPI
	Distribution string
}

// NewAWSMirror mirrors into an S3 bucket, invalidating through CloudFront
// only when a distribution is configured.
func NewAWSMirror(params AWSMirrorParams) *Mirror {
	m := &Mirror{
		Uploader:    &S3Uploader{Client: params.S3, Bucket: params.Bucket},
		Invalidator: NopInvalidator{},
		Prefix:      params.Prefix,
	}
	if params.Distribution != "" && params.CloudFront != nil {
		m.Invalidator = &CloudFrontInvalidator{Client: params.CloudFront, Distribution: params.Distribution}
	}
	return m
}

type S3Uploader struct {
	Client PutObjectAPI
	Bucket string
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) error {
	log := logr.FromContextOrDiscard(ctx).WithValues("bucket", u.Bucket, "key", params.Name)
	log.Info("mirroring to s3", "bytes", len(params.Data))

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(params.Name),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}

type CloudFrontInvalidator struct {
	Client       CreateInvalidationAPI
	Distribution string
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	logr.FromContextOrDiscard(ctx).Info("invalidating mirrored paths", "paths", paths, "distribution", i.Distribution)

	// Overwrites reuse the same key, so each call needs a unique reference.
	ref := time.Now().UTC().Format("20060102150405.000000000")
	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(ref),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
