// Package api はgin向けのHTTPハンドラーを提供します。
package api

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/nano-convert/internal/admission"
	"github.com/yourusername/nano-convert/internal/jobs"
	"github.com/yourusername/nano-convert/internal/storage"
	"github.com/yourusername/nano-convert/internal/tools"
)

// Admitter は受付判定を行うコンポーネントが実装します。
type Admitter interface {
	Admit(ctx context.Context, clientID, slug string, files []*multipart.FileHeader) ([]admission.File, *tools.Spec, error)
}

// Stager はオブジェクトの保存と署名付きURL発行を行うコンポーネントが実装します。
type Stager interface {
	Stage(ctx context.Context, data []byte, contentType, prefix string) (string, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Ping(ctx context.Context) error
}

// JobStore はジョブレコードの作成・取得を行うコンポーネントが実装します。
type JobStore interface {
	Create(ctx context.Context, slug string, inputKeys []string) (*jobs.Record, error)
	Get(ctx context.Context, jobID string) (*jobs.Record, error)
}

// Enqueuer はジョブをワークキューへ投入するコンポーネントが実装します。
type Enqueuer interface {
	Enqueue(ctx context.Context, record *jobs.Record, heavy bool) (string, error)
}

// RunToolHandler は POST /api/tools/:slug のハンドラーを返します。
// 受付→入力のステージング→ジョブ作成→キュー投入を行い、202でjobIdを返します。
func RunToolHandler(admitter Admitter, stager Stager, store JobStore, enqueuer Enqueuer, logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		slug := c.Param("slug")

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		files := form.File["files[]"]
		if len(files) == 0 {
			files = form.File["files"]
		}

		ctx := c.Request.Context()
		validated, spec, err := admitter.Admit(ctx, c.ClientIP(), slug, files)
		if err != nil {
			respondWithError(c, err)
			return
		}

		inputKeys := make([]string, 0, len(validated))
		for _, file := range validated {
			key, err := stager.Stage(ctx, file.Data, file.ContentType, storage.PrefixInput)
			if err != nil {
				logger.Printf("failed to stage input for %s: %v", slug, err)
				respondWithError(c, err)
				return
			}
			inputKeys = append(inputKeys, key)
		}

		record, err := store.Create(ctx, slug, inputKeys)
		if err != nil {
			logger.Printf("failed to create job for %s: %v", slug, err)
			respondWithError(c, err)
			return
		}

		if _, err := enqueuer.Enqueue(ctx, record, spec.Heavy); err != nil {
			logger.Printf("failed to enqueue job %s: %v", record.ID, err)
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":  record.ID,
			"status": jobs.StatusQueued,
		})
	}
}

// JobStatusHandler は GET /api/jobs/:id のハンドラーを返します。
// 完了済みジョブには署名付きダウンロードURLを付与します。
func JobStatusHandler(store JobStore, stager Stager, presignTTL time.Duration, logger *log.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = log.Default()
	}
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "jobId を指定してください。",
			})
			return
		}

		record, err := store.Get(c.Request.Context(), jobID)
		if err != nil {
			logger.Printf("failed to load job %s: %v", jobID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブ情報の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しないか、期限切れです。",
			})
			return
		}

		payload := gin.H{
			"id":        record.ID,
			"slug":      record.Slug,
			"status":    record.Status,
			"createdAt": record.CreatedAt,
			"updatedAt": record.UpdatedAt,
			"expiresAt": record.ExpiresAt,
			"inputKeys": record.InputKeys,
		}
		if record.Error != "" {
			payload["error"] = record.Error
		}
		if record.Status == jobs.StatusCompleted && record.OutputKey != "" {
			payload["outputKey"] = record.OutputKey
			url, err := stager.Presign(c.Request.Context(), record.OutputKey, presignTTL)
			if err != nil {
				logger.Printf("failed to presign output for job %s: %v", jobID, err)
			} else {
				payload["outputUrl"] = url
			}
		}

		c.JSON(http.StatusOK, payload)
	}
}

// ListToolsHandler は GET /api/tools のハンドラーを返します。
func ListToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": tools.All()})
	}
}

// HealthHandler は GET /api/health のハンドラーを返します。
// RedisとS3それぞれの到達性と全体の可否を返します。
func HealthHandler(rdb *redis.Client, stager Stager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := gin.H{"ok": true, "redis": false, "s3": false}

		if err := rdb.Ping(ctx).Err(); err == nil {
			status["redis"] = true
		} else {
			status["ok"] = false
		}

		if err := stager.Ping(ctx); err == nil {
			status["s3"] = true
		} else {
			status["ok"] = false
		}

		code := http.StatusOK
		if status["ok"] == false {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

func respondWithError(c *gin.Context, err error) {
	var admErr *admission.Error
	switch {
	case errors.As(err, &admErr):
		c.JSON(admission.HTTPStatus(admErr.Code), gin.H{
			"code":    admErr.Code,
			"message": admErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
