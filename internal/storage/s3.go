// Package storage はS3互換オブジェクトストレージ（Cloudflare R2 / MinIO）への
// ステージング・取得・署名付きURL発行を提供します。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/yourusername/nano-convert/internal/config"
)

const (
	// PrefixInput はステージングされた入力オブジェクトのプレフィックスです。
	PrefixInput = "temp"
	// PrefixOutput は変換成果物のプレフィックスです。
	PrefixOutput = "output"
)

// Stager はオブジェクトの保存・取得・削除と署名付きURL発行を担います。
type Stager struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
}

// New はS3クライアントを構築してStagerを返します。
func New(ctx context.Context, cfg *config.Config) (*Stager, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "",
		)),
		awsconfig.WithRegion(cfg.S3Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Stager{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  manager.NewUploader(client),
		bucket:    cfg.S3Bucket,
	}, nil
}

// Stage はバイト列をアップロードし、衝突しないオブジェクトキーを返します。
// キーは呼び出し側にとって不透明であり、構造に意味を持たせてはいけません。
func (s *Stager) Stage(ctx context.Context, data []byte, contentType, prefix string) (string, error) {
	key := fmt.Sprintf("%s/%d-%s", prefix, time.Now().UnixMilli(), uuid.NewString())

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to stage object: %w", err)
	}
	return key, nil
}

// Fetch はオブジェクトの内容を取得します。
func (s *Stager) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("failed to read body for %q: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Presign は期限付きのダウンロードURLを発行します。
func (s *Stager) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", key, err)
	}
	return req.URL, nil
}

// Delete はオブジェクトを削除します。存在しないキーの削除はエラーになりません。
func (s *Stager) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Ping はバケットへの到達性を確認します（ヘルスチェック用）。
func (s *Stager) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	return err
}

// Client は低レベルのS3クライアントを返します（Reaperの走査用）。
func (s *Stager) Client() *s3.Client {
	return s.client
}

// Bucket は設定されたバケット名を返します。
func (s *Stager) Bucket() string {
	return s.bucket
}
