package hierarchy

import (
	"strconv"

	"github.com/google/uuid"
)

// NodeKind classifies a derived property.
type NodeKind uint8

const (
	KindRoot NodeKind = iota
	KindPrice
	KindSpread
	KindArbitrage
	KindVWAP
)

var kindNames = [...]string{"ROOT", "PRICE", "SPREAD", "ARBITRAGE", "VWAP"}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// MarshalText renders the kind name.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// PropertyNode is one derived fact. The root has an empty ParentID.
type PropertyNode struct {
	ID       string   `json:"nodeId"`
	ParentID string   `json:"parentId,omitempty"`
	Kind     NodeKind `json:"kind"`
	Label    string   `json:"label"`
	Value    float64  `json:"value"`
}

// Opportunity is an arbitrage attached to a hierarchy. For spot markets the
// legs are exchanges; for sports they are the market ids of the best legs
// and Spread is the guaranteed margin.
type Opportunity struct {
	Kind        string  `json:"kind"`
	Pair        string  `json:"pair"`
	ExchangeA   string  `json:"exchangeA"`
	ExchangeB   string  `json:"exchangeB"`
	Spread      float64 `json:"spread"`
	CrossRegion bool    `json:"crossRegion,omitempty"`
}

const (
	OpportunitySpread = "spread"
	OpportunitySports = "sports"
)

// Hierarchy is the resolved tree for one market at one fingerprint. It is
// never mutated after it enters the cache.
type Hierarchy struct {
	RootID      string
	MarketID    string
	ExchangeID  string
	Category    Category
	Fingerprint Fingerprint
	Nodes       []PropertyNode
	Arbitrage   []Opportunity
	LatencyNs   uint64
}

// Resolution is what callers get back: a copy of the hierarchy plus the
// latency of this particular call.
type Resolution struct {
	RootID      string         `json:"rootId"`
	MarketID    string         `json:"marketId"`
	ExchangeID  string         `json:"exchangeId"`
	Category    Category       `json:"category"`
	Fingerprint string         `json:"fingerprint"`
	Nodes       []PropertyNode `json:"nodes"`
	Arbitrage   []Opportunity  `json:"arbitrage"`
	LatencyNs   uint64         `json:"latencyNs"`
	Cached      bool           `json:"cached"`
}

func (h *Hierarchy) resolve(latencyNs uint64, cached bool) Resolution {
	nodes := make([]PropertyNode, len(h.Nodes))
	copy(nodes, h.Nodes)
	arb := make([]Opportunity, len(h.Arbitrage))
	copy(arb, h.Arbitrage)
	return Resolution{
		RootID:      h.RootID,
		MarketID:    h.MarketID,
		ExchangeID:  h.ExchangeID,
		Category:    h.Category,
		Fingerprint: h.Fingerprint.String(),
		Nodes:       nodes,
		Arbitrage:   arb,
		LatencyNs:   latencyNs,
		Cached:      cached,
	}
}

var nodeNamespace = uuid.MustParse("8f0c7c1e-3b7a-5d52-9a61-6f2d0c4e8b11")

// tree accumulates nodes in construction order.
type tree struct {
	root  uuid.UUID
	nodes []PropertyNode
}

func newTree(fp Fingerprint, capacity int) *tree {
	return &tree{
		root:  uuid.NewSHA1(nodeNamespace, []byte(fp.key)),
		nodes: make([]PropertyNode, 0, capacity),
	}
}

// add appends a node under parent (-1 for the root) and returns its index.
func (t *tree) add(parent int, kind NodeKind, label string, value float64) int {
	idx := len(t.nodes)
	node := PropertyNode{Kind: kind, Label: label, Value: value}
	if idx == 0 {
		node.ID = t.root.String()
	} else {
		node.ID = uuid.NewSHA1(t.root, []byte(strconv.Itoa(idx)+"/"+kind.String()+"/"+label)).String()
	}
	if parent >= 0 {
		node.ParentID = t.nodes[parent].ID
	}
	t.nodes = append(t.nodes, node)
	return idx
}
