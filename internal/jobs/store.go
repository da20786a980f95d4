package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "job:"

// Store はジョブ状態をRedisに保存します。クライアントに見えるジョブ状態の唯一の情報源です。
//
// 作成後にレコードを書き換えるのは当該ジョブを処理中のワーカーだけなので、
// 更新はロックなしの読み取り→マージ→保存（last-writer-wins）で行います。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore はStoreを作成します。ttlはジョブと成果物の有効期間です。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Create は新しいジョブを queued 状態で登録し、そのレコードを返します。
// inputKeysの順序はそのまま保持されます（複数ファイルツールの結合順を決定するため）。
func (s *Store) Create(ctx context.Context, slug string, inputKeys []string) (*Record, error) {
	now := s.now().UnixMilli()
	record := &Record{
		ID:        uuid.NewString(),
		Slug:      slug,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now + s.ttl.Milliseconds(),
		InputKeys: append([]string(nil), inputKeys...),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, jobKey(record.ID), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to create job record: %w", err)
	}
	return record, nil
}

// Get はジョブ情報を取得します。存在しない（期限切れ含む）場合は (nil, nil) を返します。
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkRunning はジョブを running に遷移させます。終端状態からは遷移しません。
func (s *Store) MarkRunning(ctx context.Context, jobID string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		if record.Status.Terminal() {
			return
		}
		record.Status = StatusRunning
	})
}

// MarkCompleted はジョブを completed にし、成果物キーを記録します。
// failed からの遷移は行いません。すでに completed の場合はキーのみ更新します
// （再配信された同一ジョブの再処理は許容されるため）。
func (s *Store) MarkCompleted(ctx context.Context, jobID, outputKey string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		if record.Status == StatusFailed {
			return
		}
		record.Status = StatusCompleted
		record.OutputKey = outputKey
		record.Error = ""
	})
}

// MarkFailed はジョブを failed にし、失敗理由を記録します。終端状態からは遷移しません。
func (s *Store) MarkFailed(ctx context.Context, jobID, message string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		if record.Status.Terminal() {
			return
		}
		record.Status = StatusFailed
		record.Error = message
		record.OutputKey = ""
	})
}

// updatePartial はレコードを読み出してマージ更新します。updatedAtは常に更新されます。
// ジョブがすでに期限切れで存在しない場合は成功扱いの何もしない操作です
// （呼び出し側がこれを区別する必要はありません）。
// TTLはexpiresAtまでの残り時間で再設定します（更新のたびに伸びる方式ではありません）。
func (s *Store) updatePartial(ctx context.Context, jobID string, mutate func(*Record)) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	key := jobKey(jobID)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return err
	}

	mutate(&record)
	now := s.now()
	record.UpdatedAt = now.UnixMilli()

	remaining := time.Duration(record.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		// 期限到達済み: 書き戻さず、Redis側のTTL失効に任せる
		return nil
	}

	payload, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, payload, remaining).Err()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
