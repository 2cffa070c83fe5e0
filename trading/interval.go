package trading

import (
	"fmt"
	"strings"
)

// Interval 采样周期（与 Yahoo Finance 的 interval 参数取值一致）
type Interval string

const (
	Daily   Interval = "1d"
	Weekly  Interval = "1wk"
	Monthly Interval = "1mo"
)

func (iv Interval) String() string {
	return string(iv)
}

// Valid 是否为支持的周期
func (iv Interval) Valid() bool {
	switch iv {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// ParseInterval 解析周期，兼容 daily/weekly/monthly 以及 1w/1m 等简写
func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1d", "d", "day", "daily":
		return Daily, nil
	case "1wk", "1w", "w", "wk", "week", "weekly":
		return Weekly, nil
	case "1mo", "1m", "m", "mo", "month", "monthly":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown interval: %q", s)
}
