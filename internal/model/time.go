package model

import "time"

// isoFormat 与响应中的 timestamp 字段保持一致（微秒精度、无时区）。
const isoFormat = "2006-01-02T15:04:05.000000"

// snapshotFormat 用于快照文件名中的时间部分。
const snapshotFormat = "20060102_150405"

// ISOTime 将时间格式化为响应使用的 ISO 字符串。
func ISOTime(t time.Time) string {
	return t.Format(isoFormat)
}

// NowISO 返回当前时间的 ISO 字符串。
func NowISO() string {
	return ISOTime(time.Now())
}

// SnapshotTime 返回快照文件名使用的时间戳。
func SnapshotTime(t time.Time) string {
	return t.Format(snapshotFormat)
}
