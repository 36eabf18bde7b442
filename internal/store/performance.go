package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candlebot/internal/backtest"
)

// PerformanceRepository 负责持久化回测绩效结果。
type PerformanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPerformanceRepository 初始化绩效仓储并创建所需表结构。
func NewPerformanceRepository(store *Store, logger *zap.Logger) (*PerformanceRepository, error) {
	if store == nil {
		return nil, fmt.Errorf("store: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &PerformanceRepository{
		db:     store.DB(),
		logger: logger,
	}

	if err := r.initSchema(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *PerformanceRepository) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bot_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	start_value REAL NOT NULL,
	final_value REAL NOT NULL,
	total_return REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	sharpe_ratio REAL NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS backtest_rows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES backtest_runs(id),
	candle_time TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_rows_run ON backtest_rows(run_id);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化绩效表失败: %w", err)
	}
	return nil
}

// SaveRun 落库一次完整回测：汇总指标一行，逐K线绩效多行。
func (r *PerformanceRepository) SaveRun(ctx context.Context, botID, strategyName string, result backtest.Result) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (bot_id, strategy, start_value, final_value, total_return, max_drawdown, sharpe_ratio, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		botID, strategyName,
		result.StartValue, result.FinalValue,
		result.Metrics.TotalReturn, result.Metrics.MaxDrawdown, result.Metrics.SharpeRatio,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("store: 写入回测汇总失败: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: 获取回测ID失败: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO backtest_rows (run_id, candle_time, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: 准备绩效写入失败: %w", err)
	}
	defer insert.Close()

	for _, row := range result.Rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return 0, fmt.Errorf("store: 序列化绩效行失败: %w", err)
		}
		if _, err := insert.ExecContext(ctx, runID, row.Time.Format(time.RFC3339), string(payload)); err != nil {
			return 0, fmt.Errorf("store: 写入绩效行失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: 提交回测结果失败: %w", err)
	}

	r.logger.Info("回测结果已落库",
		zap.Int64("run_id", runID),
		zap.Int("rows", len(result.Rows)),
	)

	return runID, nil
}
