package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Decision 表示大模型返回的单步交易指令。
type Decision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

var validActions = map[string]struct{}{
	"BUY":  {},
	"SELL": {},
	"HOLD": {},
}

// Validate 校验决策字段合法性。
func (d Decision) Validate() error {
	action := strings.ToUpper(strings.TrimSpace(d.Action))
	if action == "" {
		return errors.New("action 不能为空")
	}
	if _, ok := validActions[action]; !ok {
		return fmt.Errorf("action 字段取值非法: %s", d.Action)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence 必须在 [0,1] 区间，目前为 %f", d.Confidence)
	}
	if strings.TrimSpace(d.Reasoning) == "" {
		return errors.New("reasoning 不能为空")
	}
	return nil
}

// NormalizedAction 返回大写规范化的动作。
func (d Decision) NormalizedAction() string {
	return strings.ToUpper(strings.TrimSpace(d.Action))
}
