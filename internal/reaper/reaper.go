// Package reaper は期限切れオブジェクトの掃除を提供します。
// 自身ではスケジューリングせず、cron等の外部トリガーから起動される前提です。
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yourusername/nano-convert/internal/storage"
)

// ObjectClient はReaperが必要とするS3操作のサブセットです。
type ObjectClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Reaper はステージング済み・出力済みオブジェクトのうちTTLを過ぎたものを削除します。
type Reaper struct {
	client ObjectClient
	bucket string
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// New はReaperを作成します。
func New(client ObjectClient, bucket string, ttl time.Duration, logger *log.Logger) *Reaper {
	if logger == nil {
		logger = log.Default()
	}
	return &Reaper{
		client: client,
		bucket: bucket,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Sweep は temp/ と output/ を走査し、最終更新からTTLを超えたオブジェクトを削除します。
// 削除は冪等で、個々の削除失敗は記録して続行します。削除した件数を返します。
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	deleted := 0
	for _, prefix := range []string{storage.PrefixInput + "/", storage.PrefixOutput + "/"} {
		n, err := r.sweepPrefix(ctx, prefix)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (r *Reaper) sweepPrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	cutoff := r.now().Add(-r.ttl)

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || obj.LastModified == nil {
				continue
			}
			if !obj.LastModified.Before(cutoff) {
				continue
			}
			_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(r.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				r.logger.Printf("failed to delete expired object %s: %v", *obj.Key, err)
				continue
			}
			r.logger.Printf("deleted expired object %s", *obj.Key)
			deleted++
		}
	}
	return deleted, nil
}
