package backup

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // S3 compatible servers; enables path-style addressing
	AccessKey string // falls back to the default credentials chain when empty
	SecretKey string

	HTTPClient *http.Client
}

// S3 writes backups as objects in one bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3(ctx context.Context, conf S3Config) (*S3, error) {
	if conf.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if conf.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
		if conf.HTTPClient != nil {
			o.HTTPClient = conf.HTTPClient
		}
	})
	return &S3{client: client, bucket: conf.Bucket, prefix: conf.Prefix}, nil
}

func (s *S3) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	// a seekable body lets the sdk compute the payload hash
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading backup")
	}
	key := path.Join(s.prefix, name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading s3://%s/%s", s.bucket, key)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
