package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"github.com/yourusername/nano-convert/internal/config"
	"github.com/yourusername/nano-convert/internal/convert"
	"github.com/yourusername/nano-convert/internal/sniff"
	"github.com/yourusername/nano-convert/internal/storage"
)

const (
	taskTypeConvert = "convert:process"

	queueDefault = "convert"
	queueHeavy   = "heavy"
)

// ObjectStore はワーカーが入出力オブジェクトにアクセスするためのインターフェースです。
type ObjectStore interface {
	Stage(ctx context.Context, data []byte, contentType, prefix string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// TaskPayload は変換ジョブのペイロードです。バイト列は含めず、キー参照のみを運びます。
type TaskPayload struct {
	JobID     string   `json:"jobId"`
	Slug      string   `json:"slug"`
	InputKeys []string `json:"inputKeys"`
}

// Manager はジョブの投入とワーカー実行を担います。
type Manager struct {
	client     *asynq.Client
	server     *asynq.Server
	mux        *asynq.ServeMux
	store      *Store
	objects    ObjectStore
	converters *convert.Registry
	jobTTL     time.Duration
	logger     *log.Logger
}

// NewManager はManagerを初期化します。
func NewManager(cfg *config.Config, store *Store, objects ObjectStore, converters *convert.Registry, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if objects == nil {
		return nil, errors.New("objects is nil")
	}
	if converters == nil {
		converters = convert.NewRegistry()
	}
	if logger == nil {
		logger = log.Default()
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			// heavyはリソース的に重いツール向けの助言的ルーティング。正しさには影響しない。
			Queues: map[string]int{
				queueDefault: 3,
				queueHeavy:   2,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Printf("task %s failed: %v", task.Type(), err)
				sentry.CaptureException(err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:     client,
		server:     server,
		mux:        mux,
		store:      store,
		objects:    objects,
		converters: converters,
		jobTTL:     time.Duration(cfg.JobTTLSeconds) * time.Second,
		logger:     logger,
	}
	mux.HandleFunc(taskTypeConvert, manager.handleConvertTask)
	return manager, nil
}

// Run はワーカーサーバーを起動します（ブロッキング）。
func (m *Manager) Run() error {
	if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Enqueue はジョブをキューに投入します。heavyなツールは専用キューへ振り分けます。
func (m *Manager) Enqueue(ctx context.Context, record *Record, heavy bool) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record is nil")
	}

	payload := &TaskPayload{
		JobID:     record.ID,
		Slug:      record.Slug,
		InputKeys: record.InputKeys,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	queue := queueDefault
	if heavy {
		queue = queueHeavy
	}

	task := asynq.NewTask(taskTypeConvert, body)
	info, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.MaxRetry(1),
		asynq.Timeout(m.jobTTL+time.Minute),
	)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (m *Manager) handleConvertTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}
	return m.ProcessTask(ctx, &payload)
}

// ProcessTask は1件の変換ジョブを実行します。再配信（at-least-once）を前提とした
// 冪等な処理で、どの失敗経路でもジョブレコードを failed に確定させたうえで
// エラーをキュー側へ返します（再試行・デッドレター方針はキュー側の責務）。
func (m *Manager) ProcessTask(ctx context.Context, payload *TaskPayload) error {
	if err := m.store.MarkRunning(ctx, payload.JobID); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}

	outputKey, err := m.execute(ctx, payload)
	if err != nil {
		m.logger.Printf("job %s failed: %v", payload.JobID, err)
		if failErr := m.store.MarkFailed(ctx, payload.JobID, err.Error()); failErr != nil {
			m.logger.Printf("failed to record failure for job %s: %v", payload.JobID, failErr)
		}
		return err
	}

	if err := m.store.MarkCompleted(ctx, payload.JobID, outputKey); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	m.logger.Printf("job %s completed output=%s", payload.JobID, outputKey)
	return nil
}

// execute は入力取得→変換→成果物ステージングを行い、出力キーを返します。
func (m *Manager) execute(ctx context.Context, payload *TaskPayload) (string, error) {
	if len(payload.InputKeys) == 0 {
		return "", fmt.Errorf("job has no input keys")
	}

	inputs := make([]convert.Input, len(payload.InputKeys))
	for i, key := range payload.InputKeys {
		data, err := m.objects.Fetch(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to fetch input %q: %w", key, err)
		}
		inputs[i] = convert.Input{
			Data:        data,
			ContentType: sniff.ContentType(data, ""),
		}
	}

	converter := m.converters.For(payload.Slug)
	output, err := converter.Convert(ctx, inputs)
	if err != nil {
		return "", fmt.Errorf("conversion failed for %q: %w", payload.Slug, err)
	}

	outputKey, err := m.objects.Stage(ctx, output.Data, output.ContentType, storage.PrefixOutput)
	if err != nil {
		return "", fmt.Errorf("failed to stage output: %w", err)
	}
	return outputKey, nil
}
