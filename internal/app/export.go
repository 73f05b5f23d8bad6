package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"market-hierarchy/internal/storage"
)

// Export renders historical metrics samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.MetricsSample, max int) []storage.MetricsSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.MetricsSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.MetricsSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "exchange_id", "resolutions", "cache_hits", "cache_misses", "failures", "cache_hit_ratio", "avg_resolution_ns", "total_nodes", "cache_size", "opportunities", "status", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		errMsg := ""
		if s.Error != nil {
			errMsg = *s.Error
		}
		record := []string{
			s.Bucket.Format(time.RFC3339),
			s.ExchangeID,
			strconv.FormatInt(s.Resolutions, 10),
			strconv.FormatInt(s.CacheHits, 10),
			strconv.FormatInt(s.CacheMisses, 10),
			strconv.FormatInt(s.Failures, 10),
			s.CacheHitRatio.String(),
			s.AvgResolutionNs.String(),
			strconv.FormatInt(s.TotalNodes, 10),
			strconv.Itoa(s.CacheSize),
			strconv.Itoa(s.Opportunities),
			s.Status,
			errMsg,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.MetricsSample) error {
	if len(samples) < 2 {
		return errors.New("need at least two samples to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	ratio := make([]float64, len(samples))
	avg := make([]float64, len(samples))

	for i, s := range samples {
		x[i] = s.Bucket
		ratio[i] = s.CacheHitRatio.InexactFloat64()
		avg[i] = s.AvgResolutionNs.InexactFloat64()
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Cache hit ratio",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.3f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Avg resolution (ns)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Hit ratio",
				XValues: x,
				YValues: ratio,
			},
			chart.TimeSeries{
				Name:    "Avg resolution ns",
				XValues: x,
				YValues: avg,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
