package service

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/cuongbtq/vendor-jobs/internal/domain"
)

// Vendor selection policies accepted by NewSelector
const (
	SelectionRandom     = "random"
	SelectionRoundRobin = "round_robin"
)

// VendorSelector picks the vendor a new job is routed to
type VendorSelector interface {
	Select() string
}

// RandomSelector picks a vendor uniformly at random
type RandomSelector struct{}

// Select returns a random vendor
func (RandomSelector) Select() string {
	return domain.Vendors[rand.IntN(len(domain.Vendors))]
}

// RoundRobinSelector alternates between vendors
type RoundRobinSelector struct {
	next atomic.Uint64
}

// Select returns the next vendor in rotation
func (s *RoundRobinSelector) Select() string {
	n := s.next.Add(1) - 1
	return domain.Vendors[n%uint64(len(domain.Vendors))]
}

// FixedSelector always routes to the same vendor
type FixedSelector string

// Select returns the fixed vendor
func (s FixedSelector) Select() string {
	return string(s)
}

// NewSelector builds the selector for a configured policy.
// A vendor identifier pins every job to that vendor.
func NewSelector(policy string) (VendorSelector, error) {
	switch policy {
	case SelectionRandom, "":
		return RandomSelector{}, nil
	case SelectionRoundRobin:
		return &RoundRobinSelector{}, nil
	}

	if domain.IsValidVendor(policy) {
		return FixedSelector(policy), nil
	}
	return nil, fmt.Errorf("%w: unknown selection policy %q", domain.ErrInvalidVendor, policy)
}
