package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"wedding-manager/internal/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 30 * time.Second

// GridFSStore keeps objects in a MongoDB GridFS bucket, one file per path.
type GridFSStore struct {
	DB         *mongo.Database
	BucketName string
	URLs       URLBuilder
}

func NewGridFSStore(db *mongo.Database, bucketName, baseURL string) (*GridFSStore, error) {
	if _, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName)); err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", bucketName, err)
	}
	return &GridFSStore{DB: db, BucketName: bucketName, URLs: URLBuilder{BaseURL: baseURL}}, nil
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func (s *GridFSStore) Put(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	bucket, err := s.bucket(ctx)
	if err != nil {
		return "", apperr.Backend("put object", err)
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if _, err := bucket.UploadFromStream(clean, r, opts); err != nil {
		return "", apperr.Backend("put object", err)
	}
	return s.URLs.URL(clean), nil
}

func (s *GridFSStore) List(ctx context.Context, prefix string) ([]string, error) {
	clean, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}
	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, apperr.Backend("list objects", err)
	}

	filter := bson.M{"filename": bson.M{"$regex": "^" + regexp.QuoteMeta(clean+"/")}}
	cursor, err := bucket.Find(filter, options.GridFSFind().SetSort(bson.D{{Key: "filename", Value: 1}}))
	if err != nil {
		return nil, apperr.Backend("list objects", err)
	}
	defer cursor.Close(ctx)

	urls := []string{}
	seen := make(map[string]bool)
	for cursor.Next(ctx) {
		var file struct {
			Filename string `bson:"filename"`
		}
		if err := cursor.Decode(&file); err != nil {
			return nil, apperr.Backend("list objects", err)
		}
		// re-uploads keep older revisions; list each path once
		if seen[file.Filename] {
			continue
		}
		seen[file.Filename] = true
		urls = append(urls, s.URLs.URL(file.Filename))
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Backend("list objects", err)
	}
	return urls, nil
}

func (s *GridFSStore) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}
	bucket, err := s.bucket(ctx)
	if err != nil {
		return nil, apperr.Backend("open object", err)
	}

	stream, err := bucket.OpenDownloadStreamByName(clean)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, apperr.NotFound("file", clean)
	}
	if err != nil {
		return nil, apperr.Backend("open object", err)
	}
	return stream, nil
}

// bucket returns a handle carrying the request deadline; the bucket's
// stream calls take no context.
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.DB, options.GridFSBucket().SetName(s.BucketName))
	if err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	if err := bucket.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	if err := bucket.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	return bucket, nil
}
