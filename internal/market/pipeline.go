package market

import "context"

// Pipeline 为策略提供决策所需的K线序列。
// 回测场景读取历史文件，实盘场景从交易所拉取最新窗口。
type Pipeline interface {
	Run(ctx context.Context) (Series, error)
}

// CSVPipeline 从本地CSV文件提供历史序列。
type CSVPipeline struct {
	path string
}

// NewCSVPipeline 创建CSV数据管道。
func NewCSVPipeline(path string) *CSVPipeline {
	return &CSVPipeline{path: path}
}

func (p *CSVPipeline) Run(ctx context.Context) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCSV(p.path)
}
