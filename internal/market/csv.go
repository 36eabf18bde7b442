package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var requiredColumns = []string{"time", "open", "high", "low", "close", "volume"}

// LoadCSV 从CSV文件读取K线序列。要求表头携带 time 与 OHLCV 列。
func LoadCSV(path string) (Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: 打开CSV失败: %w", err)
	}
	defer file.Close()

	return ReadCSV(file)
}

// ReadCSV 从任意 reader 解析K线序列。
func ReadCSV(r io.Reader) (Series, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("market: 读取CSV表头失败: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	var series Series
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("market: 读取CSV第%d行失败: %w", row, err)
		}
		row++

		ts, err := parseTime(record[index["time"]])
		if err != nil {
			return nil, fmt.Errorf("%w: 第%d行 time=%q", ErrInvalidColumnType, row, record[index["time"]])
		}

		candle := Candle{Time: ts}
		for column, target := range map[string]*float64{
			"open":   &candle.Open,
			"high":   &candle.High,
			"low":    &candle.Low,
			"close":  &candle.Close,
			"volume": &candle.Volume,
		} {
			value, err := strconv.ParseFloat(strings.TrimSpace(record[index[column]]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: 第%d行 %s=%q", ErrInvalidColumnType, row, column, record[index[column]])
			}
			*target = value
		}

		series = append(series, candle)
	}

	if err := series.Validate(); err != nil {
		return nil, err
	}

	return series, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}

	// 兼容毫秒时间戳导出格式
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("无法解析时间 %q", raw)
}
