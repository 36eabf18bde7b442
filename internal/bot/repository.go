package bot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candlebot/internal/ledger"
	"candlebot/internal/store"
)

// Status 表示机器人存储状态。
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// Key 唯一定位一个策略槽位。
type Key struct {
	PersonID string
	Exchange string
	BotID    string
}

// Record 为策略的持久化形态：执行客户端等实盘句柄被剥离，
// 只保留策略标识、参数与账本数据，恢复时再重建客户端。
type Record struct {
	Strategy      string             `json:"strategy"`
	WarmupMinutes int                `json:"warmup_minutes"`
	Params        map[string]float64 `json:"params"`
	State         *ledger.Ledger     `json:"state"`
}

var (
	// ErrStrategyNotFound 表示指定槽位与状态下没有持久化策略。
	ErrStrategyNotFound = errors.New("bot: strategy not found")
)

// StrategyRepository 定义策略持久化能力。
type StrategyRepository interface {
	Store(ctx context.Context, key Key, status Status, record Record) error
	Read(ctx context.Context, key Key, status Status) (Record, error)
	ChangeStatus(ctx context.Context, key Key, from, to Status) error
}

// SQLiteStrategyRepository 把策略记录存入 SQLite。
type SQLiteStrategyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStrategyRepository 创建仓储并初始化表结构。
func NewSQLiteStrategyRepository(store *store.Store, logger *zap.Logger) (*SQLiteStrategyRepository, error) {
	if store == nil {
		return nil, errors.New("bot: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &SQLiteStrategyRepository{
		db:     store.DB(),
		logger: logger,
	}

	if err := r.initSchema(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *SQLiteStrategyRepository) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS strategies (
	person_id TEXT NOT NULL,
	exchange TEXT NOT NULL,
	bot_id TEXT NOT NULL,
	status TEXT NOT NULL,
	strategy TEXT NOT NULL,
	warmup_minutes INTEGER NOT NULL,
	params TEXT NOT NULL,
	state TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (person_id, exchange, bot_id)
);
CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies(status);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("bot: 初始化策略表失败: %w", err)
	}
	return nil
}

// Store 写入或覆盖策略记录。
func (r *SQLiteStrategyRepository) Store(ctx context.Context, key Key, status Status, record Record) error {
	params, err := json.Marshal(record.Params)
	if err != nil {
		return fmt.Errorf("bot: 序列化策略参数失败: %w", err)
	}
	state, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("bot: 序列化账本失败: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO strategies (person_id, exchange, bot_id, status, strategy, warmup_minutes, params, state, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(person_id, exchange, bot_id) DO UPDATE SET
	status = excluded.status,
	strategy = excluded.strategy,
	warmup_minutes = excluded.warmup_minutes,
	params = excluded.params,
	state = excluded.state,
	updated_at = excluded.updated_at`,
		key.PersonID, key.Exchange, key.BotID, string(status),
		record.Strategy, record.WarmupMinutes, string(params), string(state),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("bot: 写入策略记录失败: %w", err)
	}
	return nil
}

// Read 按槽位与状态读取策略记录。
func (r *SQLiteStrategyRepository) Read(ctx context.Context, key Key, status Status) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT strategy, warmup_minutes, params, state FROM strategies
WHERE person_id = ? AND exchange = ? AND bot_id = ? AND status = ?`,
		key.PersonID, key.Exchange, key.BotID, string(status),
	)

	var record Record
	var params, state string
	if err := row.Scan(&record.Strategy, &record.WarmupMinutes, &params, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s/%s/%s (%s)", ErrStrategyNotFound, key.PersonID, key.Exchange, key.BotID, status)
		}
		return Record{}, fmt.Errorf("bot: 读取策略记录失败: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &record.Params); err != nil {
		return Record{}, fmt.Errorf("bot: 解析策略参数失败: %w", err)
	}
	record.State = &ledger.Ledger{}
	if err := json.Unmarshal([]byte(state), record.State); err != nil {
		return Record{}, fmt.Errorf("bot: 解析账本失败: %w", err)
	}

	return record, nil
}

// ChangeStatus 迁移策略状态，from 与 to 相同时为幂等空操作。
func (r *SQLiteStrategyRepository) ChangeStatus(ctx context.Context, key Key, from, to Status) error {
	if from == to {
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE strategies SET status = ?, updated_at = ?
WHERE person_id = ? AND exchange = ? AND bot_id = ? AND status = ?`,
		string(to), time.Now().UTC().Format(time.RFC3339),
		key.PersonID, key.Exchange, key.BotID, string(from),
	)
	if err != nil {
		return fmt.Errorf("bot: 迁移策略状态失败: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("bot: 读取迁移结果失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s/%s (%s)", ErrStrategyNotFound, key.PersonID, key.Exchange, key.BotID, from)
	}

	r.logger.Info("策略状态已迁移",
		zap.String("bot_id", key.BotID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return nil
}
