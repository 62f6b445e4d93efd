package models

import (
	"strings"
	"time"
)

// StatsScope selects the receipts a statistic is computed over. A nil
// UserID spans every user.
type StatsScope struct {
	UserID   *int64
	DateFrom *time.Time
	DateTo   *time.Time
}

// Bucket is a calendar granularity for time series.
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketMonth Bucket = "month"
	BucketYear  Bucket = "year"
)

// ParseBucket accepts day, month and year; empty input means day.
func ParseBucket(s string) (Bucket, bool) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BucketDay, true
	case BucketDay, BucketMonth, BucketYear:
		return b, true
	default:
		return "", false
	}
}

// SeriesKind selects what a time series counts.
type SeriesKind string

const (
	SeriesReceipts SeriesKind = "receipts"
	SeriesAmounts  SeriesKind = "amounts"
)

const (
	DefaultTopItemsLimit  = 10
	MaxTopItemsLimit      = 50
	DefaultWordCloudLimit = 30
	MaxWordCloudLimit     = 100
)

// Summary holds the scalar KPIs computed from one scope.
type Summary struct {
	TotalSpent    float64
	TotalReceipts int64
}

// AverageReceiptValue is TotalSpent / TotalReceipts, or 0 without receipts.
func (s Summary) AverageReceiptValue() float64 {
	if s.TotalReceipts == 0 {
		return 0
	}
	return s.TotalSpent / float64(s.TotalReceipts)
}

// TopItem groups items by name. Count is the summed quantity.
type TopItem struct {
	Name       string
	Count      float64
	TotalSpent float64
}

// WordCloudItem groups items by name. Value is the number of lines.
type WordCloudItem struct {
	Text       string
	Value      int64
	TotalSpent float64
}

type TimeSeriesPoint struct {
	Date  time.Time
	Value float64
}

// MarketValue is one row of a per-market rollup.
type MarketValue struct {
	MarketName string
	Value      float64
}
