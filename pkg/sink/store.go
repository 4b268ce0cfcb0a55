package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"

	"github.com/operator-framework/cost-guard/pkg/alert"
)

// Store persists archived reports.
type Store interface {
	// Put writes data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Location describes where key is stored, eg. s3://bucket/prefix/key.
	Location(key string) string
}

var (
	// FileStoreDirPerms are the permissions directories storing reports are created with.
	FileStoreDirPerms os.FileMode = 0755
	// FileStorePerms are the permissions report files are created with.
	FileStorePerms os.FileMode = 0644
)

// OpenStore creates a Store from a file:// or s3://bucket/prefix URL.
// newS3 is only called for s3 URLs.
func OpenStore(in string, newS3 func() s3iface.S3API) (Store, error) {
	u, err := url.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("a valid path with scheme (s3:// or file://) must be given: %v", err)
	}

	switch u.Scheme {
	case "file":
		return NewFileStore(u.Path)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("s3 archive URL '%s' has no bucket", in)
		}
		return NewS3Store(newS3(), u.Host, u.Path), nil
	default:
		return nil, fmt.Errorf("unknown scheme '%s' given, please provide either s3:// or file://", u.Scheme)
	}
}

// NewFileStore creates a store which writes reports below dir.
func NewFileStore(dir string) (FileStore, error) {
	if dir == "" {
		return FileStore{}, fmt.Errorf("file store requires a directory")
	}
	dir = filepath.Clean(dir)
	if file, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return FileStore{}, fmt.Errorf("could not access path '%s': %v", dir, err)
		}

		if err = os.MkdirAll(dir, FileStoreDirPerms); err != nil {
			return FileStore{}, fmt.Errorf("could not create directory '%s': %v", dir, err)
		}
	} else if !file.IsDir() {
		return FileStore{}, fmt.Errorf("the path '%s' is a file", dir)
	}

	return FileStore{directory: dir}, nil
}

// FileStore writes reports to the local filesystem.
type FileStore struct {
	directory string
}

var _ Store = FileStore{}

func (f FileStore) Put(_ context.Context, key string, data []byte) error {
	p := f.Location(key)
	if err := os.MkdirAll(filepath.Dir(p), FileStoreDirPerms); err != nil {
		return fmt.Errorf("could not create directory for '%s': %v", p, err)
	}
	if err := ioutil.WriteFile(p, data, FileStorePerms); err != nil {
		return fmt.Errorf("failed to write report to '%s': %v", p, err)
	}
	return nil
}

func (f FileStore) Location(key string) string {
	return filepath.Join(f.directory, filepath.FromSlash(key))
}

// NewS3Store returns a Store for objects below prefix in bucket.
func NewS3Store(client s3iface.S3API, bucket, prefix string) S3Store {
	return S3Store{
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
		s3:     client,
	}
}

// S3Store is an S3 backed Store.
type S3Store struct {
	Bucket string
	Prefix string
	s3     s3iface.S3API
}

var _ Store = S3Store{}

func (s S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload '%s': %w", s.Location(key), err)
	}
	return nil
}

func (s S3Store) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.key(key))
}

func (s S3Store) key(key string) string {
	return path.Join(s.Prefix, key)
}

// StoreSink archives reports as JSON documents.
type StoreSink struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *StoreSink) Send(ctx context.Context, report alert.Report) error {
	data, err := json.Marshal(&report)
	if err != nil {
		return fmt.Errorf("could not encode report: %v", err)
	}
	return s.store.Put(ctx, ArchiveKey(report, s.now(), s.newID()), data)
}

// ArchiveKey names the object a report is archived under:
// <metric>/<resource>/<unix seconds>-<id>.json.
func ArchiveKey(report alert.Report, at time.Time, id string) string {
	return path.Join(
		keySegment(report.MetricName),
		keySegment(report.ResourceID),
		fmt.Sprintf("%d-%s.json", at.Unix(), id),
	)
}

func keySegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
