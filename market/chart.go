package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/tradebook/pkg/atomicfile"
)

// DefaultTimeframe is used by PriceAt.
const DefaultTimeframe = "1D"

// ChartStore is a per-ticker bar cache at {root}/{ticker}/charts/{tf}.json.
// It satisfies portfolio.PriceHistory.
type ChartStore struct {
	root      string
	timeframe string
	writer    atomicfile.Writer
	log       zerolog.Logger

	mu    sync.Mutex
	cache map[string][]Candle
}

type ChartOption func(*ChartStore)

func WithTimeframe(tf string) ChartOption {
	return func(s *ChartStore) { s.timeframe = tf }
}

func WithLogger(l zerolog.Logger) ChartOption {
	return func(s *ChartStore) { s.log = l }
}

func NewChartStore(root string, opts ...ChartOption) *ChartStore {
	s := &ChartStore{
		root:      root,
		timeframe: DefaultTimeframe,
		writer:    atomicfile.Default,
		log:       zerolog.Nop(),
		cache:     map[string][]Candle{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *ChartStore) Path(ticker, timeframe string) string {
	return filepath.Join(s.root, ticker, "charts", timeframe+".json")
}

// Load returns the bars on disk, oldest first. A missing file is not an
// error.
func (s *ChartStore) Load(ticker, timeframe string) ([]Candle, error) {
	data, err := os.ReadFile(s.Path(ticker, timeframe))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bars []Candle
	if err := json.Unmarshal(data, &bars); err != nil {
		return nil, fmt.Errorf("chart %s/%s: %w", ticker, timeframe, err)
	}
	return Clean(bars), nil
}

// Save replaces the file with the cleaned bars and returns them.
func (s *ChartStore) Save(ticker, timeframe string, bars []Candle) ([]Candle, error) {
	bars = Clean(bars)
	data, err := json.Marshal(bars)
	if err != nil {
		return nil, err
	}
	if err := s.writer.WriteFile(s.Path(ticker, timeframe), data, 0o644); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.cache, cacheKey(ticker, timeframe))
	s.mu.Unlock()

	s.log.Debug().Str("ticker", ticker).Str("timeframe", timeframe).Int("bars", len(bars)).Msg("chart saved")
	return bars, nil
}

// Merge adds bars to what is on disk. New bars win on equal timestamps.
func (s *ChartStore) Merge(ticker, timeframe string, bars []Candle) ([]Candle, error) {
	existing, err := s.Load(ticker, timeframe)
	if err != nil {
		return nil, err
	}
	return s.Save(ticker, timeframe, append(existing, bars...))
}

// PriceAt is the close of the last bar at or before t.
func (s *ChartStore) PriceAt(ticker string, t time.Time) (float64, bool) {
	bars := s.bars(ticker, s.timeframe)
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(t) })
	if i == 0 {
		return 0, false
	}
	return bars[i-1].Close, true
}

// Stale reports whether the cached bars for ticker need refreshing at now.
// An empty cache is stale.
func (s *ChartStore) Stale(ticker, timeframe string, now time.Time) (bool, error) {
	bars, err := s.Load(ticker, timeframe)
	if err != nil {
		return true, err
	}
	if len(bars) == 0 {
		return true, nil
	}
	return Stale(bars[len(bars)-1].Time, timeframe, now), nil
}

func (s *ChartStore) bars(ticker, timeframe string) []Candle {
	key := cacheKey(ticker, timeframe)

	s.mu.Lock()
	defer s.mu.Unlock()
	if bars, ok := s.cache[key]; ok {
		return bars
	}
	bars, err := s.Load(ticker, timeframe)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("chart unreadable")
	}
	s.cache[key] = bars
	return bars
}

func cacheKey(ticker, timeframe string) string {
	return strings.ToUpper(ticker) + "/" + timeframe
}

// Clean sorts bars by time and drops duplicates, keeping the later one.
// Times are truncated to the second, the file's resolution.
func Clean(bars []Candle) []Candle {
	byTs := make(map[int64]Candle, len(bars))
	for _, b := range bars {
		b.Time = time.Unix(b.Time.Unix(), 0).UTC()
		byTs[b.Time.Unix()] = b
	}
	out := make([]Candle, 0, len(byTs))
	for _, b := range byTs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
