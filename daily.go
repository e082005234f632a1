package bodymap

import (
	"context"
	"strings"

	"github.com/agentstation/bodymap/internal/output"
	"github.com/agentstation/bodymap/pkg/daily"
	"github.com/agentstation/bodymap/pkg/measurements"
)

// DailyResult is the outcome of a daily aggregation.
type DailyResult struct {
	// Source is the dataset that was read, empty when built in memory.
	Source   string
	Days     []daily.Day
	Artifact string
}

// Daily reads a consolidated dataset and writes its daily averages.
func (c *client) Daily(ctx context.Context, path string) (*DailyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		path = c.datasetPath()
	}
	ms, err := output.ReadConsolidated(path)
	if err != nil {
		return nil, err
	}
	result, err := c.daily(ctx, ms)
	if err != nil {
		return nil, err
	}
	result.Source = path
	return result, nil
}

func (c *client) daily(ctx context.Context, ms []measurements.Measurement) (*DailyResult, error) {
	days := daily.Aggregate(ms, c.loc)
	path, err := c.writer.WriteDaily(ctx, days)
	if err != nil {
		return nil, err
	}
	return &DailyResult{Days: days, Artifact: path}, nil
}

// datasetPath locates the dataset Build writes in the first configured
// format.
func (c *client) datasetPath() string {
	files := c.writer.Files()
	name := files.ConsolidatedCSV
	if len(c.cfg.Output.Formats) > 0 {
		switch strings.ToLower(c.cfg.Output.Formats[0]) {
		case output.DatasetJSON:
			name = files.ConsolidatedJSON
		case output.DatasetYAML:
			name = files.ConsolidatedYAML
		case output.DatasetParquet:
			name = files.ConsolidatedParquet
		}
	}
	return c.writer.Path(name)
}
