package benchmark

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/milton/pkg/inference"
)

// inferencePrompts is the fixed 8-prompt set spec §4.5 requires: three
// factual, two reasoning and three code prompts.
var inferencePrompts = []string{
	"What is the capital of France?",
	"What year did the first moon landing happen?",
	"Name the largest planet in the solar system.",
	"If a train leaves at 2pm travelling 60mph and another leaves at 3pm travelling 90mph on the same route, when does the second train catch the first?",
	"A farmer has 17 sheep, all but 9 die. How many are left?",
	"Write a Go function that reverses a string.",
	"Write a Python one-liner that filters even numbers from a list.",
	"Fix the bug: `for i := 0; i <= len(xs); i++ { fmt.Println(xs[i]) }`",
}

const warmupIterations = 3

// runInferenceTier measures TTFT and tokens/s across the fixed prompt set,
// discarding the first warmupIterations results per spec §4.5.
func runInferenceTier(ctx context.Context, client *inference.Client) map[string]MetricResult {
	var ttfts, tps []float64

	for i, prompt := range inferencePrompts {
		result, err := client.Stream(ctx, []inference.Message{{Role: "user", Content: prompt}}, nil)
		if err != nil {
			if errors.Is(err, inference.ErrUnavailable) {
				return map[string]MetricResult{
					MetricLatencyMeanMS: {Status: StatusError, Detail: err.Error()},
					MetricThroughputTPS: {Status: StatusError, Detail: err.Error()},
				}
			}
			continue
		}
		if i < warmupIterations {
			continue
		}
		ttfts = append(ttfts, float64(result.TTFT.Milliseconds()))
		if result.TotalDuration > 0 {
			tps = append(tps, float64(result.TotalTokens)/result.TotalDuration.Seconds())
		}
	}

	if len(ttfts) == 0 {
		return map[string]MetricResult{
			MetricLatencyMeanMS: {Status: StatusSkipped, Detail: "no samples after warmup"},
			MetricThroughputTPS: {Status: StatusSkipped, Detail: "no samples after warmup"},
		}
	}

	latency := summarize(ttfts)
	throughput := summarize(tps)

	return map[string]MetricResult{
		MetricLatencyMeanMS: {Value: latency.Mean, Unit: "ms", Status: StatusOK},
		MetricLatencyP95MS:  {Value: latency.P95, Unit: "ms", Status: StatusOK},
		MetricLatencyP99MS:  {Value: latency.P99, Unit: "ms", Status: StatusOK},
		MetricThroughputTPS: {Value: throughput.Mean, Unit: "tokens/s", Status: StatusOK},
	}
}
