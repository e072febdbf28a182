package chunkstore

// A chunk store that pulls chunks from an S3 bucket.
// Grounded on the teacher's connector/s3.S3Connector: the same
// bucket-tagging lock scheme, generalized from whole-file dirent objects to
// chunk-name objects.

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/eriq-augustine/golog"
	"github.com/pkg/errors"
)

const (
	s3LockKey   = "vaultdrive-lock"
	s3LockTrue  = "true"
	s3LockFalse = "false"
)

var activeS3Stores map[string]bool
var activeS3StoresLock sync.Mutex

func init() {
	activeS3Stores = make(map[string]bool)
}

// S3Store is a Store backed by objects in a single S3 bucket.
type S3Store struct {
	bucket      string
	client      *s3.S3
	maxDiskSize uint64
}

// NewS3Store opens a chunk store backed by the given bucket. There should
// only ever be one open S3Store per bucket; force clears a stale lock.
func NewS3Store(bucket string, credentialsPath string, awsProfile string, region string,
	maxDiskSize uint64, force bool) (*S3Store, error) {
	activeS3StoresLock.Lock()
	defer activeS3StoresLock.Unlock()

	if activeS3Stores[bucket] {
		return nil, errors.Errorf("cannot open two chunk stores on the same bucket: %s", bucket)
	}

	awsCreds := credentials.NewSharedCredentials(credentialsPath, awsProfile)
	if _, err := awsCreds.Get(); err != nil {
		return nil, errors.WithStack(err)
	}

	awsSession, err := session.NewSession(&aws.Config{
		Credentials: awsCreds,
		Region:      aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, bucket)
	}

	store := &S3Store{
		bucket:      bucket,
		client:      s3.New(awsSession),
		maxDiskSize: maxDiskSize,
	}

	if err := store.lock(force); err != nil {
		return nil, errors.Wrap(err, bucket)
	}

	activeS3Stores[bucket] = true

	return store, nil
}

func (this *S3Store) Put(name Name, data []byte) error {
	if this.maxDiskSize > 0 {
		usage, err := this.CurrentDiskUsage()
		if err != nil {
			return errors.WithStack(err)
		}

		if usage+uint64(len(data)) > this.maxDiskSize {
			return errors.WithStack(ErrCapacityExceeded)
		}
	}

	_, err := this.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(this.bucket),
		Key:    aws.String(string(name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrap(err, string(name))
	}

	return nil
}

func (this *S3Store) Get(name Name) ([]byte, error) {
	response, err := this.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(this.bucket),
		Key:    aws.String(string(name)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.RequestFailure); ok && awsErr.StatusCode() == 404 {
			return nil, errors.WithStack(ErrNotFound)
		}
		return nil, errors.Wrap(err, string(name))
	}
	defer response.Body.Close()

	data, err := ioutil.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(err, string(name))
	}

	return data, nil
}

func (this *S3Store) Delete(name Name) error {
	_, err := this.client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(this.bucket),
		Key:    aws.String(string(name)),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.RequestFailure); ok && awsErr.StatusCode() == 404 {
			return errors.WithStack(ErrNotFound)
		}
		return errors.Wrap(err, string(name))
	}

	_, err = this.client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(this.bucket),
		Key:    aws.String(string(name)),
	})
	if err != nil {
		return errors.Wrap(err, string(name))
	}

	return nil
}

func (this *S3Store) CurrentDiskUsage() (uint64, error) {
	var total uint64

	input := &s3.ListObjectsV2Input{Bucket: aws.String(this.bucket)}
	err := this.client.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			if obj.Size != nil {
				total += uint64(*obj.Size)
			}
		}
		return true
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	return total, nil
}

func (this *S3Store) MaxDiskUsage() uint64 {
	return this.maxDiskSize
}

func (this *S3Store) Close() error {
	activeS3StoresLock.Lock()
	defer activeS3StoresLock.Unlock()

	delete(activeS3Stores, this.bucket)

	return errors.WithStack(this.unlock())
}

// We lock a bucket by putting a special tag on it, exactly as the teacher's
// S3Connector does.
func (this *S3Store) lock(force bool) error {
	response, err := this.client.GetBucketTagging(&s3.GetBucketTaggingInput{
		Bucket: aws.String(this.bucket),
	})
	if err != nil {
		if !strings.HasPrefix(err.Error(), "NoSuchTagSet") {
			return errors.WithStack(err)
		}
	}

	isLocked := false
	if response != nil {
		for _, tag := range response.TagSet {
			if tag.Key != nil && *tag.Key == s3LockKey && tag.Value != nil && *tag.Value == s3LockTrue {
				isLocked = true
			}
		}
	}

	if isLocked {
		if !force {
			return errors.Errorf(
				"S3 chunk store (at %s) already owned."+
					" Ensure no one else is using it, or force the store.", this.bucket)
		}

		golog.Warn(fmt.Sprintf("Forcing S3 chunk store open on bucket %s, stale lock tag present.", this.bucket))
	}

	return errors.WithStack(this.putLockTag(s3LockTrue))
}

func (this *S3Store) unlock() error {
	return errors.WithStack(this.putLockTag(s3LockFalse))
}

func (this *S3Store) putLockTag(value string) error {
	_, err := this.client.PutBucketTagging(&s3.PutBucketTaggingInput{
		Bucket: aws.String(this.bucket),
		Tagging: &s3.Tagging{
			TagSet: []*s3.Tag{
				{
					Key:   aws.String(s3LockKey),
					Value: aws.String(value),
				},
			},
		},
	})
	return err
}
