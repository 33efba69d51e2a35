package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Conn struct {
	client *minio.Client
}

/*
NewConn builds an object storage connection from the environment. The
defaults point at a local MinIO instance.
*/
func NewConn() (*Conn, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}

	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
	})

	if err != nil {
		return nil, err
	}

	return &Conn{client: client}, nil
}

func (conn *Conn) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := conn.client.BucketExists(ctx, bucketName)

	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return conn.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
}

func (conn *Conn) Put(
	ctx context.Context,
	bucketName string,
	objectKey string,
	body io.Reader,
	size int64,
) error {
	_, err := conn.client.PutObject(
		ctx, bucketName, objectKey, body, size, minio.PutObjectOptions{
			ContentType: "application/json",
		},
	)

	return err
}

func (conn *Conn) Get(
	ctx context.Context,
	bucketName string,
	objectKey string,
) (*bytes.Buffer, error) {
	object, err := conn.client.GetObject(
		ctx, bucketName, objectKey, minio.GetObjectOptions{},
	)

	if err != nil {
		return nil, err
	}

	defer object.Close()

	buf := bytes.NewBuffer([]byte{})

	if _, err := io.Copy(buf, object); err != nil {
		return nil, err
	}

	return buf, nil
}

func (conn *Conn) List(
	ctx context.Context, bucketName string, prefix string,
) ([]string, error) {
	var keys []string

	objects := conn.client.ListObjects(ctx, bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objects {
		if object.Err != nil {
			return nil, object.Err
		}

		keys = append(keys, object.Key)
	}

	return keys, nil
}
