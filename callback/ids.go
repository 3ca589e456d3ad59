package callback

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDAllocator hands out ids for components that were declared without one.
type IDAllocator interface {
	NextID(kind string) string
}

// IDAllocatorFunc adapts a function to IDAllocator.
type IDAllocatorFunc func(kind string) string

func (f IDAllocatorFunc) NextID(kind string) string { return f(kind) }

// RandomIDs allocates random UUIDs.
func RandomIDs() IDAllocator {
	return IDAllocatorFunc(func(string) string { return uuid.NewString() })
}

// SequentialIDs allocates deterministic ids of the form
// "<prefix>-<kind>-<n>" with n counting from 1 across all kinds.
func SequentialIDs(prefix string) IDAllocator {
	return &sequential{prefix: prefix}
}

type sequential struct {
	prefix string
	n      atomic.Int64
}

func (s *sequential) NextID(kind string) string {
	n := s.n.Add(1)
	parts := make([]string, 0, 3)
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	if kind != "" {
		parts = append(parts, strings.ToLower(kind))
	}
	parts = append(parts, strconv.FormatInt(n, 10))
	return strings.Join(parts, "-")
}
