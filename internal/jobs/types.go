package jobs

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal は終端状態（以後遷移しない状態）かどうかを返します。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record はジョブの現在状態を表します。タイムスタンプはエポックミリ秒です。
type Record struct {
	ID        string   `json:"id"`
	Slug      string   `json:"slug"`
	Status    Status   `json:"status"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	ExpiresAt int64    `json:"expiresAt"`
	InputKeys []string `json:"inputKeys"`
	OutputKey string   `json:"outputKey,omitempty"` // status=completed の場合のみ設定
	Error     string   `json:"error,omitempty"`     // status=failed の場合のみ設定
}
