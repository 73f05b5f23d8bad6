package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"market-hierarchy/internal/exchange"
	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/nano"
)

// Resolve runs one resolution pass over a YAML snapshot file and prints
// the hierarchies.
func (a *App) Resolve(ctx context.Context, opts ResolveOptions) error {
	if opts.File == "" {
		return errors.New("--file must be provided")
	}

	engine := a.newEngine(exchange.NewFile(a.Config.Exchange.ID, opts.File))
	result, err := engine.Refresh(ctx)
	if err != nil {
		return err
	}

	if opts.JSON {
		return writeJSON(a.Out, resolveReport{
			Items:   reportItems(result),
			Metrics: engine.Metrics(),
			Cache:   engine.CacheStats(),
			Nodes:   engine.TotalNodes(),
		})
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tExchange\tMarket\tCategory\tNodes\tLatency(ms)\tArbitrage\tError")
	for _, item := range result.Items {
		if item.Err != nil {
			fmt.Fprintf(writer, "%d\t\t\t\t\t\t\t%s\n", item.Index, sanitizeInline(item.Err.Error()))
			continue
		}
		r := item.Resolution
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%d\t%.4f\t%d\t\n",
			item.Index, r.ExchangeID, r.MarketID, r.Category, len(r.Nodes), nano.Millis(r.LatencyNs), len(r.Arbitrage))
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if opts.Verbose {
		for _, item := range result.Items {
			if item.Err == nil {
				printTree(a.Out, item.Resolution)
			}
		}
	}

	m := engine.Metrics()
	fmt.Fprintf(a.Out, "\nresolved=%d failed=%d nodes=%d avg=%.4fms throughput=%.0f/s\n",
		result.Succeeded, result.Failed, engine.TotalNodes(), m.AvgResolutionMs(), result.Throughput)
	return nil
}

type resolveReport struct {
	Items   []reportItem         `json:"items"`
	Metrics hierarchy.Metrics    `json:"metrics"`
	Cache   hierarchy.CacheStats `json:"cache"`
	Nodes   uint64               `json:"totalNodes"`
}

type reportItem struct {
	Index      int                   `json:"index"`
	Resolution *hierarchy.Resolution `json:"resolution,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func reportItems(result hierarchy.BatchResult) []reportItem {
	items := make([]reportItem, 0, len(result.Items))
	for _, item := range result.Items {
		ri := reportItem{Index: item.Index}
		if item.Err != nil {
			ri.Error = item.Err.Error()
		} else {
			res := item.Resolution
			ri.Resolution = &res
		}
		items = append(items, ri)
	}
	return items
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTree renders nodes indented under their parents.
func printTree(w io.Writer, r hierarchy.Resolution) {
	children := make(map[string][]hierarchy.PropertyNode, len(r.Nodes))
	for _, n := range r.Nodes {
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	fmt.Fprintf(w, "\n%s/%s (%s)\n", r.ExchangeID, r.MarketID, r.Fingerprint)
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		for _, n := range children[parent] {
			fmt.Fprintf(w, "%*s%s %s = %g\n", depth*2, "", n.Kind, n.Label, n.Value)
			walk(n.ID, depth+1)
		}
	}
	walk("", 0)
}
