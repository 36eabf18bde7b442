package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

const decisionTemplate = `
你是一个专业的加密货币现货交易员。你管理一个仅含基础资产与计价资产的账户，
每根K线只能做一次决策：全仓市价买入、全仓市价卖出或保持不动。

市场快照：
{{ .SnapshotJSON }}

制定决策时请遵循：
1. 以 RSI 与近期收盘走势判断是否出现超买/超卖反转机会；
2. 仅在计价资产余额大于 0 时考虑 BUY，仅在基础资产余额大于 0 时考虑 SELL；
3. 无明确信号时保持 HOLD，保守处理不确定情形。

请严格输出唯一的 JSON 对象，格式如下：
{
  "action": "BUY|SELL|HOLD",   // BUY: 全仓市价买入, SELL: 全仓市价卖出, HOLD: 不操作
  "confidence": 0.0-1.0,        // 决策信心度
  "reasoning": "..."           // 支撑结论的关键理由
}

注意事项：
- 所有字段均需填写。
- 除 JSON 对象外不要输出任何其他内容。
`

var tmpl = template.Must(template.New("decision").Parse(decisionTemplate))

// Snapshot 汇总一步决策所需的市场与账户信息。
type Snapshot struct {
	Base           string    `json:"base"`
	LastClose      float64   `json:"last_close"`
	RSI            float64   `json:"rsi_14"`
	RecentCloses   []float64 `json:"recent_closes"`
	BaseAvailable  float64   `json:"base_available"`
	QuoteAvailable float64   `json:"quote_available"`
	OpenOrders     int       `json:"open_orders"`
}

type promptContext struct {
	SnapshotJSON string
}

// BuildPrompt 将市场快照渲染成提示词字符串。
func BuildPrompt(snapshot Snapshot) (string, error) {
	snapshotJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化市场快照失败: %w", err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, promptContext{SnapshotJSON: string(snapshotJSON)}); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}
