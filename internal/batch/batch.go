package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/types"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Run is given a non-positive concurrency
const DefaultConcurrency = 4

// Outcome is the result of validating one scanned id
type Outcome struct {
	ScannedID string
	Result    types.Result
	Err       error
	Duration  time.Duration
}

// Run validates every scanned id with the base request's network, client
// and ruleset. Each id is an independent call; a failure never cancels its
// siblings. Outcomes are returned in input order.
func Run(ctx context.Context, v executor.Validator, base types.ValidationRequest, ids []string, concurrency int) []Outcome {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	outcomes := make([]Outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			req := base
			req.ScannedID = id

			start := time.Now()
			result, err := v.Validate(ctx, &req)
			outcomes[i] = Outcome{
				ScannedID: id,
				Result:    result,
				Err:       err,
				Duration:  time.Since(start),
			}
			return nil
		})
	}

	// Workers never return errors; failures live in the outcomes
	_ = g.Wait()
	return outcomes
}

// ReadIDs reads one scanned id per line, skipping blanks and # comments
func ReadIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scanned ids: %w", err)
	}
	return ids, nil
}
