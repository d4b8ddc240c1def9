package model

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Partition selects the owners one dispatcher instance is responsible for.
// The zero value covers every owner.
type Partition struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

// PartitionKey hashes an owner id. Stores persist it so the eligible-event
// query can filter by partition without rehashing.
func PartitionKey(ownerID string) uint32 {
	return murmur3.Sum32([]byte(ownerID))
}

// Whole reports whether p covers every owner.
func (p Partition) Whole() bool {
	return p.Count <= 1
}

// Contains reports whether ownerID falls in p.
func (p Partition) Contains(ownerID string) bool {
	if p.Whole() {
		return true
	}
	return int(PartitionKey(ownerID)%uint32(p.Count)) == p.Index
}

// ContainsKey is Contains for a precomputed PartitionKey.
func (p Partition) ContainsKey(key uint32) bool {
	if p.Whole() {
		return true
	}
	return int(key%uint32(p.Count)) == p.Index
}

// Validate rejects indexes outside [0, Count).
func (p Partition) Validate() error {
	if p.Count < 0 || (p.Count > 0 && (p.Index < 0 || p.Index >= p.Count)) {
		return fmt.Errorf("partition %d/%d out of range", p.Index, p.Count)
	}
	return nil
}

// String renders the partition as a metric label.
func (p Partition) String() string {
	if p.Whole() {
		return "all"
	}
	return fmt.Sprintf("%d/%d", p.Index, p.Count)
}

// Partitions returns the n partitions that together cover every owner.
func Partitions(n int) []Partition {
	if n <= 1 {
		return []Partition{{Index: 0, Count: 1}}
	}
	out := make([]Partition, n)
	for i := range out {
		out[i] = Partition{Index: i, Count: n}
	}
	return out
}
