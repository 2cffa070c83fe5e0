package trading

import "time"

// 中国时区（东方财富/中证指数数据日期均按北京时间）
var CST = time.FixedZone("CST", 8*3600)

// PeriodKey returns an ordinal identifying the calendar period t falls in.
// Weeks start on Monday.
func PeriodKey(t time.Time, iv Interval) int {
	switch iv {
	case Weekly:
		y, w := t.ISOWeek()
		return y*100 + w
	case Monthly:
		return t.Year()*100 + int(t.Month())
	default:
		return t.Year()*10000 + int(t.Month())*100 + t.Day()
	}
}

// FirstOfPeriod returns the indexes of the first timestamp of every period.
// times must be sorted ascending. For Daily every index is returned.
func FirstOfPeriod(times []time.Time, iv Interval) []int {
	out := make([]int, 0, len(times))
	last := -1
	for i, t := range times {
		k := PeriodKey(t, iv)
		if i == 0 || k != last {
			out = append(out, i)
			last = k
		}
	}
	return out
}

// StartOfDay 截断到当天零点
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
