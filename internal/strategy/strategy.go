package strategy

import (
	"context"
	"errors"

	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

// Strategy 为一次K线触发一步决策的策略接口。策略通过执行客户端
// 下单/撤单，并暴露账本供外部持久化与绩效代码只读访问。
type Strategy interface {
	// Name 标识策略类型，持久化后用于重建。
	Name() string
	// Execute 基于尾随分析窗口做一步决策，失败必须向上传播。
	Execute(ctx context.Context, window market.Series) error
	// WarmupMinutes 声明所需的最小分析窗口（分钟）。
	WarmupMinutes() int
	// Client 返回当前绑定的执行客户端，持久化形态下为 nil。
	Client() execution.Client
	// State 暴露策略账本。
	State() *ledger.Ledger
	// Attach 在恢复运行时重新绑定执行客户端。
	Attach(client execution.Client)
	// Params 导出策略参数，供持久化与重建。
	Params() map[string]float64
}

// Run 执行一步策略：先让执行客户端按最新K线对账，再调用决策逻辑。
// 顺序不可调换，策略观察到的账本必须是对账后的。
func Run(ctx context.Context, s Strategy, window market.Series) error {
	client := s.Client()
	if client == nil {
		return errors.New("strategy: 执行客户端未绑定")
	}
	if err := client.UpdateState(); err != nil {
		return err
	}
	return s.Execute(ctx, window)
}

// Core 持有执行客户端与账本引用，供具体策略内嵌。
// 持久化时执行客户端被剥离，账本数据单独序列化。
type Core struct {
	exec  execution.Client
	state *ledger.Ledger
}

// NewCore 从执行客户端初始化策略核心。
func NewCore(exec execution.Client) Core {
	core := Core{exec: exec}
	if exec != nil {
		core.state = exec.State()
	}
	return core
}

// NewDetachedCore 从既有账本恢复、暂不绑定执行客户端。
func NewDetachedCore(state *ledger.Ledger) Core {
	return Core{state: state}
}

// Client 返回当前执行客户端。
func (c *Core) Client() execution.Client {
	return c.exec
}

// State 返回策略账本。
func (c *Core) State() *ledger.Ledger {
	return c.state
}

// Attach 绑定新的执行客户端。客户端必须围绕同一账本构建。
func (c *Core) Attach(client execution.Client) {
	c.exec = client
	if client != nil {
		c.state = client.State()
	}
}
