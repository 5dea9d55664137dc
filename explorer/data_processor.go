package explorer

import (
	"errors"
	"fmt"
	"github.com/kpaschen/crosswell/lib"
	"github.com/kpaschen/crosswell/lib/datatypes"
	explorerlib "github.com/kpaschen/crosswell/lib/explorer"
	"github.com/kpaschen/crosswell/lib/reporter"
	"github.com/kpaschen/crosswell/lib/settings"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	// Most ranks a single figure request may ask for.
	MAX_RANKS_PER_REQUEST = 8
)

// HeatmapExplorer serves inversions of one decomposed problem.
type HeatmapExplorer struct {
	FilenameBase string

	pipeline *lib.Pipeline

	// Held while a figure and its reports are written, so concurrent
	// requests do not interleave files.
	mu     sync.Mutex
	latest []datatypes.RankResult
}

func NewHeatmapExplorer(pipeline *lib.Pipeline) *HeatmapExplorer {
	return &HeatmapExplorer{
		FilenameBase: pipeline.Settings().ResultsDirectory,
		pipeline:     pipeline,
	}
}

// Initialize makes sure the results directory exists.
func (h *HeatmapExplorer) Initialize() error {
	return os.MkdirAll(h.FilenameBase, 0755)
}

// filterRanks keeps the integer entries of ks, at most MAX_RANKS_PER_REQUEST.
func filterRanks(ks []interface{}) []int {
	ret := make([]int, 0, MAX_RANKS_PER_REQUEST)
	for _, v := range ks {
		if len(ret) == MAX_RANKS_PER_REQUEST {
			break
		}
		f, ok := v.(float64)
		if !ok || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			continue
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			continue
		}
		ret = append(ret, int(f))
	}
	return ret
}

func figureName(ranks []int) string {
	return fmt.Sprintf("heatmaps_resmodel_rank_%d.png", ranks[0])
}

// getRanks reads a comma separated ks parameter of at most
// MAX_RANKS_PER_REQUEST ranks. Without one, it falls back to the ranks of
// the last figure and then to the configured ranks.
func (h *HeatmapExplorer) getRanks(params url.Values) ([]int, error) {
	if value := params.Get("ks"); value != "" {
		parts := strings.Split(value, ",")
		if len(parts) > MAX_RANKS_PER_REQUEST {
			return nil, fmt.Errorf("asked for %d ranks, at most %d are allowed", len(parts), MAX_RANKS_PER_REQUEST)
		}
		return settings.ParseRanks(parts)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.latest) > 0 {
		return datatypes.Report{Heatmaps: h.latest}.Ranks(), nil
	}
	return h.pipeline.Settings().Ranks, nil
}

func (h *HeatmapExplorer) setLatest(results []datatypes.RankResult) {
	h.latest = results
}

var errNoResults = errors.New("no results")

// readResult looks for rank k in the files of the last published run,
// preferring parquet.
func (h *HeatmapExplorer) readResult(k int) (*datatypes.RankResult, error) {
	if _, err := os.Stat(filepath.Join(h.FilenameBase, reporter.ParquetFilename)); err == nil {
		pq := explorerlib.NewParquetExplorer(h.FilenameBase)
		if err = pq.Initialize(reporter.ParquetFilename); err != nil {
			return nil, err
		}
		defer pq.Close()
		ranks, err := pq.Ranks()
		if err != nil {
			return nil, err
		}
		for _, r := range ranks {
			if r == k {
				return pq.ResultForRank(k)
			}
		}
		return nil, errNoResults
	}

	path := filepath.Join(h.FilenameBase, reporter.JsonFilename)
	if _, err := os.Stat(path); err != nil {
		return nil, errNoResults
	}
	report, err := reporter.ReadJsonReport(path)
	if err != nil {
		return nil, err
	}
	for i := range report.Heatmaps {
		if report.Heatmaps[i].K == k {
			return &report.Heatmaps[i], nil
		}
	}
	return nil, errNoResults
}

func parseRank(value string) (int, error) {
	k, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse an integer rank out of %q", value)
	}
	return k, nil
}
