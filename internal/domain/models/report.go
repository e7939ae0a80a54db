package models

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Report names one of the four upstream report shapes.
type Report string

const (
	ReportLatestPrice  Report = "latest_price"
	ReportOHLC         Report = "ohlc"
	ReportAveragePrice Report = "average_price"
	ReportVolume       Report = "volume"
)

// DefaultInterval is the window in seconds used when a request omits one.
const DefaultInterval = 60

// ReportRequest is the body accepted by every report route.
type ReportRequest struct {
	TokenAddress string `json:"tokenAddress" validate:"required"`
	Interval     any    `json:"interval"`
}

// UnmarshalJSON accepts any scalar tokenAddress. Numbers and true are kept
// as their text; null, false, 0, objects and arrays leave it empty.
func (r *ReportRequest) UnmarshalJSON(b []byte) error {
	var raw struct {
		TokenAddress any `json:"tokenAddress"`
		Interval     any `json:"interval"`
	}
	if err := sonic.ConfigStd.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Interval = raw.Interval
	switch v := raw.TokenAddress.(type) {
	case string:
		r.TokenAddress = v
	case float64:
		if v != 0 {
			r.TokenAddress = strconv.FormatFloat(v, 'f', -1, 64)
		}
	case bool:
		if v {
			r.TokenAddress = "true"
		}
	default:
		r.TokenAddress = ""
	}
	return nil
}

// EffectiveInterval returns the requested interval, or DefaultInterval when
// the value is missing, null, zero, empty or false. Integral strings such as
// "60" are converted to numbers.
func (r ReportRequest) EffectiveInterval() any {
	switch v := r.Interval.(type) {
	case nil:
		return DefaultInterval
	case bool:
		if !v {
			return DefaultInterval
		}
	case string:
		if v == "" {
			return DefaultInterval
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case float64:
		if v == 0 {
			return DefaultInterval
		}
	case int:
		if v == 0 {
			return DefaultInterval
		}
	case int64:
		if v == 0 {
			return DefaultInterval
		}
	}
	return r.Interval
}

// Value is a numeric leaf kept byte-for-byte as the provider encoded it, so a
// quoted "1.23" stays quoted.
type Value []byte

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

// Empty reports whether the value is absent or falsy: null, "", 0 or false.
func (v Value) Empty() bool {
	s := bytes.TrimSpace(v)
	switch string(s) {
	case "", "null", `""`, "false":
		return true
	}
	if s[0] == '-' || (s[0] >= '0' && s[0] <= '9') {
		return isZeroNumber(s)
	}
	return false
}

func isZeroNumber(s []byte) bool {
	for _, c := range s {
		switch {
		case c == '-' || c == '+' || c == '.' || c == '0':
		case c == 'e' || c == 'E':
			return true
		default:
			return false
		}
	}
	return true
}

type TimeWindow struct {
	Start string `json:"Start"`
	End   string `json:"End"`
}

type Interval struct {
	Time *TimeWindow `json:"Time"`
}

type Ohlc struct {
	Close Value `json:"Close"`
}

type Average struct {
	Mean                 Value `json:"Mean"`
	SimpleMoving         Value `json:"SimpleMoving"`
	WeightedSimpleMoving Value `json:"WeightedSimpleMoving"`
	ExponentialMoving    Value `json:"ExponentialMoving"`
}

type OhlcPrice struct {
	Ohlc *Ohlc `json:"Ohlc"`
}

type AveragePrice struct {
	Average *Average `json:"Average"`
}

type Volume struct {
	Base  Value `json:"Base"`
	Quote Value `json:"Quote"`
	Usd   Value `json:"Usd"`
}

// ClosePrice is the single-value latest-price record.
type ClosePrice struct {
	Price *OhlcPrice `json:"Price"`
}

// Close returns the close value, or nil when any level is missing.
func (c ClosePrice) Close() Value {
	if c.Price == nil || c.Price.Ohlc == nil {
		return nil
	}
	return c.Price.Ohlc.Close
}

// OHLCPoint is one OHLC series entry.
type OHLCPoint struct {
	Interval *Interval  `json:"Interval"`
	Price    *OhlcPrice `json:"Price"`
}

// AveragePoint is one averaged-price series entry.
type AveragePoint struct {
	Interval *Interval     `json:"Interval"`
	Price    *AveragePrice `json:"Price"`
}

// VolumePoint is one volume series entry.
type VolumePoint struct {
	Interval *Interval `json:"Interval"`
	Volume   *Volume   `json:"Volume"`
}
