// Package diagnostic verifies that a vector index backend can create,
// populate, search and drop a scratch collection.
package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/logger"
)

const (
	// Collection is the scratch collection the check works in.
	Collection = "semsearch_check"
	// Dimension is the vector width of the scratch collection.
	Dimension = 128
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Checker runs the checks and prints one line per step.
type Checker struct {
	out    io.Writer
	logger *zap.Logger
}

// NewChecker returns a Checker writing to out.
func NewChecker(out io.Writer) *Checker {
	return &Checker{out: out, logger: zap.NewNop()}
}

// Run executes every step in order and stops at the first failure, which it
// returns. Failures are also logged to the context's logger.
func (c *Checker) Run(ctx context.Context, open func(context.Context) (domain.VectorIndex, error)) error {
	c.logger = logger.FromContext(ctx).Named("diagnostic")
	fmt.Fprintln(c.out, "Checking vector index...")
	fmt.Fprintln(c.out)

	idx, err := open(ctx)
	if err != nil {
		return c.fail("Failed to open vector index", err)
	}
	c.ok("Vector index opened")

	exists, err := idx.HasCollection(ctx, Collection)
	if err != nil {
		return c.fail("Failed to check collection", err)
	}
	c.ok(fmt.Sprintf("Collection check: '%s' exists=%t", Collection, exists))

	if exists {
		if err := idx.DropCollection(ctx, Collection); err != nil {
			return c.fail("Failed to remove leftover collection", err)
		}
		c.ok("Removed leftover test collection")
	}
	if err := idx.CreateCollection(ctx, Collection, Dimension); err != nil {
		return c.fail("Failed to create collection", err)
	}
	exists, err = idx.HasCollection(ctx, Collection)
	if err != nil {
		return c.fail("Failed to check collection", err)
	}
	if !exists {
		return c.fail("Failed to create collection", errors.New("collection not found after create"))
	}
	c.ok(fmt.Sprintf("Created test collection '%s'", Collection))

	records := []domain.Record{
		{ID: 0, Vector: fill(0.1), Text: "test document 1"},
		{ID: 1, Vector: fill(0.2), Text: "test document 2"},
	}
	if err := idx.Upsert(ctx, Collection, records); err != nil {
		return c.fail("Failed to insert data", err)
	}
	c.ok(fmt.Sprintf("Inserted %d test documents", len(records)))

	hits, err := idx.Search(ctx, Collection, [][]float32{fill(0.15)}, 2, []string{domain.FieldText})
	if err != nil {
		return c.fail("Search failed", err)
	}
	if len(hits) != 1 || len(hits[0]) != len(records) {
		return c.fail("Search failed", fmt.Errorf("expected %d hits, got %v", len(records), hits))
	}
	c.ok(fmt.Sprintf("Search completed successfully, found %d results", len(hits[0])))

	if err := idx.DropCollection(ctx, Collection); err != nil {
		return c.fail("Failed to clean up test collection", err)
	}
	c.ok("Cleaned up test collection")

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, okStyle.Render("Vector index is working correctly!"))
	return nil
}

func (c *Checker) ok(msg string) {
	fmt.Fprintln(c.out, okStyle.Render("✓ "+msg))
}

func (c *Checker) fail(msg string, err error) error {
	fmt.Fprintln(c.out, failStyle.Render(fmt.Sprintf("✗ %s: %v", msg, err)))
	c.logger.Error("diagnostic failed", zap.String("step", msg), zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

func fill(v float32) []float32 {
	out := make([]float32, Dimension)
	for i := range out {
		out[i] = v
	}
	return out
}
