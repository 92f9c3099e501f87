package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"NewsletterAgent/internal/domain"
)

// Category describes a concrete endpoint provided by config (listing page, feed URL).
type Category struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Since      time.Time
	SiteName   string
	Keywords   []string
	Limit      int
	Categories []Category
	Options    map[string]string
}

// PerUnit splits the request limit across n units (keywords, feeds), never below one.
func (r Request) PerUnit(n int) int {
	if r.Limit <= 0 {
		return 0
	}
	if n <= 0 {
		return r.Limit
	}
	return max(r.Limit/n, 1)
}

// Scanner captures a single strategy implementation (web search, RSS, arXiv).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawArticle, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
