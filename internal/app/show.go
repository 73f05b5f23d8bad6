package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent metrics samples and, optionally, alerted opportunities.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(a.Out, "no samples found")
	} else {
		writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time (UTC)\tExchange\tResolutions\tHitRatio\tAvg(ns)\tFailures\tNodes\tCache\tOpps\tStatus\tError")
		for _, s := range samples {
			errMsg := ""
			if s.Error != nil {
				errMsg = sanitizeInline(*s.Error)
			}
			fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
				s.Bucket.UTC().Format(time.RFC3339),
				s.ExchangeID,
				s.Resolutions,
				formatDecimal(s.CacheHitRatio, 4),
				formatDecimal(s.AvgResolutionNs, 0),
				s.Failures,
				s.TotalNodes,
				s.CacheSize,
				s.Opportunities,
				s.Status,
				errMsg,
			)
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}

	if !opts.Opportunities {
		return nil
	}

	records, err := store.ListRecentOpportunities(ctx, opts.Limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out)
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no opportunities found")
		return nil
	}
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKind\tPair\tLegs\tSpread%\tThreshold%\tCrossRegion")
	for _, r := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s/%s\t%s\t%s\t%t\n",
			r.Bucket.UTC().Format(time.RFC3339),
			r.Kind,
			r.Pair,
			r.ExchangeA, r.ExchangeB,
			formatDecimal(r.SpreadPct, 3),
			formatDecimal(r.ThresholdPct, 3),
			r.CrossRegion,
		)
	}
	return writer.Flush()
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
