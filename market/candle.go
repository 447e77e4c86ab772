package market

import (
	"encoding/json"
	"fmt"
	"time"
)

// Candle is one OHLCV bar. On disk it uses compact keys with t in unix
// seconds.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type compactCandle struct {
	T json.RawMessage `json:"t"`
	O float64         `json:"o"`
	H float64         `json:"h"`
	L float64         `json:"l"`
	C float64         `json:"c"`
	V float64         `json:"v"`
}

func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	}{c.Time.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume})
}

// UnmarshalJSON accepts t as unix seconds or, for older files, an RFC 3339
// string.
func (c *Candle) UnmarshalJSON(b []byte) error {
	var raw compactCandle
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.T) == 0 {
		return fmt.Errorf("candle: missing t")
	}

	var secs float64
	if err := json.Unmarshal(raw.T, &secs); err == nil {
		c.Time = time.Unix(int64(secs), 0).UTC()
	} else {
		var s string
		if err := json.Unmarshal(raw.T, &s); err != nil {
			return fmt.Errorf("candle: bad t %s", raw.T)
		}
		t, err := parseLegacyTime(s)
		if err != nil {
			return fmt.Errorf("candle: %w", err)
		}
		c.Time = t.UTC()
	}

	c.Open, c.High, c.Low, c.Close, c.Volume = raw.O, raw.H, raw.L, raw.C, raw.V
	return nil
}

func parseLegacyTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
