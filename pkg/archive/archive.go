// Package archive uploads staged release artifacts to long-term object
// storage, keyed by release tag.
package archive

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/service/s3"
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/releaser/pkg/release"
)

// ObjectStore is the storage half of the archiver.
type ObjectStore interface {
	PutObject(bucket, key string, data io.ReadSeeker) error
}

// S3ObjectStore stores objects in S3.
type S3ObjectStore struct {
	Client *s3.S3
}

func (store *S3ObjectStore) PutObject(
	bucket string,
	key string,
	data io.ReadSeeker,
) error {
	if _, err := store.Client.PutObject(&s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   data,
	}); err != nil {
		return fmt.Errorf(
			"putting object in bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}

var _ ObjectStore = &S3ObjectStore{}

// Archiver uploads a variant's staged artifacts under
// `<prefix>/<tag>/<variant>/linux/<platform>/<binary>`.
type Archiver struct {
	Store  ObjectStore
	Bucket string
	Prefix string
}

func (archiver *Archiver) Archive(
	invocation *release.Invocation,
	artifacts []release.BuildArtifact,
) error {
	for i := range artifacts {
		if err := archiver.archive(invocation, &artifacts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (archiver *Archiver) archive(
	invocation *release.Invocation,
	artifact *release.BuildArtifact,
) error {
	key := path.Join(
		archiver.Prefix,
		invocation.Tag,
		artifact.Variant,
		"linux",
		artifact.Platform,
		artifact.Binary,
	)

	f, err := os.Open(artifact.StagedPath)
	if err != nil {
		return fmt.Errorf(
			"archiving artifact `%s` for variant `%s`: %w",
			artifact.Binary,
			artifact.Variant,
			err,
		)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Errorf("closing file `%s`: %v", artifact.StagedPath, err)
		}
	}()

	if err := archiver.Store.PutObject(archiver.Bucket, key, f); err != nil {
		return fmt.Errorf(
			"archiving artifact `%s` for variant `%s`: %w",
			artifact.Binary,
			artifact.Variant,
			err,
		)
	}

	log.WithFields(log.Fields{
		"variant":  artifact.Variant,
		"platform": artifact.Platform,
	}).Infof("archived artifact to s3://%s/%s", archiver.Bucket, key)

	return nil
}
