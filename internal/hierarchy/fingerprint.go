package hierarchy

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the cache key of a snapshot. Hash selects the slot; key is
// kept to rule out collisions.
type Fingerprint struct {
	Hash uint64
	key  string
}

func (f Fingerprint) String() string {
	return strconv.FormatUint(f.Hash, 16)
}

// Quantizer buckets prices and volumes before hashing. A quantum <= 0 keys
// on the exact float bits.
type Quantizer struct {
	PriceQuantum  float64
	VolumeQuantum float64
}

func (q Quantizer) fingerprint(s MarketSnapshot, cat Category) Fingerprint {
	buf := make([]byte, 0, len(s.ExchangeID)+len(s.MarketID)+48)
	buf = append(buf, s.ExchangeID...)
	buf = append(buf, 0)
	buf = append(buf, s.MarketID...)
	buf = append(buf, 0, byte(cat))
	buf = binary.LittleEndian.AppendUint64(buf, bucket(s.Price, q.PriceQuantum))
	buf = binary.LittleEndian.AppendUint64(buf, bucket(s.Volume, q.VolumeQuantum))
	if cat == CategorySports && s.Sports != nil {
		buf = binary.LittleEndian.AppendUint64(buf, bucket(s.Sports.HomeOdds, q.PriceQuantum))
		buf = binary.LittleEndian.AppendUint64(buf, bucket(s.Sports.AwayOdds, q.PriceQuantum))
		buf = append(buf, s.Sports.Status...)
	}
	return Fingerprint{Hash: xxhash.Sum64(buf), key: string(buf)}
}

func bucket(v, quantum float64) uint64 {
	if quantum <= 0 {
		return math.Float64bits(v)
	}
	return uint64(int64(math.Round(v / quantum)))
}
