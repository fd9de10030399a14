// Package backup copies the roster document to a directory or an S3 bucket.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/roster/core"
	"github.com/trezcool/roster/core/roster"
)

// Destination stores named backup files.
type Destination interface {
	// Put stores the content of r under name and returns where it was written.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

const s3Scheme = "s3://"

// Open selects the destination for target: "s3://bucket/prefix" or a directory path.
func Open(ctx context.Context, target string, conf core.BackupConfig) (Destination, error) {
	target = core.CleanString(target)
	if target == "" {
		return nil, errors.New("backup target is required")
	}
	if strings.HasPrefix(target, s3Scheme) {
		bucket, prefix := splitS3Target(strings.TrimPrefix(target, s3Scheme))
		if bucket == "" {
			return nil, errors.Errorf("invalid s3 target %q: missing bucket", target)
		}
		return NewS3(ctx, S3Config{
			Bucket:    bucket,
			Prefix:    prefix,
			Region:    conf.Region,
			Endpoint:  conf.Endpoint,
			AccessKey: conf.AccessKey,
			SecretKey: conf.SecretKey,
		})
	}
	return NewDir(target)
}

func splitS3Target(s string) (bucket, prefix string) {
	parts := strings.SplitN(s, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix
}

// Filename names a backup taken at t.
func Filename(t time.Time) string {
	return "roster-" + t.UTC().Format("20060102T150405Z") + ".json"
}

// Run writes the current roster document to dst and returns its location.
func Run(ctx context.Context, svc *roster.Service, dst Destination, now time.Time) (string, error) {
	doc, err := svc.Document(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding roster document")
	}
	loc, err := dst.Put(ctx, Filename(now), bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "storing backup")
	}
	return loc, nil
}
