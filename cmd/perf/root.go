package perf

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskfire/taskfire-go/cmd/util"
	"github.com/taskfire/taskfire-go/rpc/client"
	"github.com/taskfire/taskfire-go/rpc/common"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

var (
	// PerfCmd runs concurrent request load against a task-queue endpoint
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for task-queue endpoints",
		Long: `Issue requests concurrently over one connection and report throughput and
round trip latency. Point it at a development server started with "taskfire serve" or at any
endpoint that answers the configured request.`,
		Args:    cobra.NoArgs,
		PreRunE: processPerfConfig,
		RunE:    run,
	}

	perfClient         *client.Client
	perfRequest        common.Request
	perfNumThreads     = 10
	perfLargeRequestKB = 64
	perfBurstSize      = 100
	perfSkip           = make([]string, 0)
)

func init() {
	util.SetupRPCClientFlags(PerfCmd)

	key := "request"
	PerfCmd.Flags().String(key, `{"action":"ping"}`, util.WrapString("JSON request issued by the benchmarks"))
	key = "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. request-large,burst)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU issuing requests"))
	key = "large-request-size"
	PerfCmd.Flags().Int(key, 64, util.WrapString("Size of the padding added by the request-large benchmark (in KB)"))
	key = "burst"
	PerfCmd.Flags().Int(key, 100, util.WrapString("Requests issued back to back before waiting in the burst benchmark"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfLargeRequestKB = viper.GetInt("large-request-size")
	perfBurstSize = max(viper.GetInt("burst"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if err := json.Unmarshal([]byte(viper.GetString("request")), &perfRequest); err != nil {
		return fmt.Errorf("request must be a JSON object: %w", err)
	}
	if perfRequest == nil {
		return fmt.Errorf("request must be a JSON object")
	}

	var err error
	perfClient, err = util.NewClient(cmd)
	return err
}

func run(_ *cobra.Command, _ []string) error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = perfClient.Close(ctx, nil)
	}()

	fmt.Println("Performance testing tool for task-queue endpoints")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := perfClient.WaitOpen(openCtx); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	// single request, waiting for each reply
	results["request"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("request") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := perfClient.Do(context.Background(), perfRequest); err != nil {
					log.Printf("(request) - error: %v\n", err)
				}
			}
		})
	})
	printResult("request", results["request"])

	// single request with a large padding field
	results["request-large"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("request-large") {
			return
		}

		large := perfRequest.With("padding", strings.Repeat("x", perfLargeRequestKB*1024))

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := perfClient.Do(context.Background(), large); err != nil {
					log.Printf("(request-large) - error: %v\n", err)
				}
			}
		})
	})
	printResult("request-large", results["request-large"])

	// pipelined requests, many in flight on the connection at once
	results["burst"] = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("burst") {
			return
		}

		b.ResetTimer()

		for issued := 0; issued < b.N; {
			n := min(perfBurstSize, b.N-issued)

			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				// the callback also receives errors returned synchronously
				_, _ = perfClient.Request(context.Background(), perfRequest, func(_ *common.Envelope, err error) {
					if err != nil {
						log.Printf("(burst) - error: %v\n", err)
					}
					wg.Done()
				})
			}
			wg.Wait()
			issued += n
		}
	})
	printResult("burst", results["burst"])

	fmt.Println()
	fmt.Println(renderResults(results))
	fmt.Println(renderLatency(perfClient.Latency()))

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// shouldSkip checks if a benchmark should be skipped
func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// renderResults renders the benchmark results as a table
func renderResults(results map[string]testing.BenchmarkResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Throughput")
	tw.AppendHeader(table.Row{"Test", "Ops", "Per Op", "Ops/sec"})

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	slices.Sort(tests)

	for _, test := range tests {
		result := results[test]
		if result.NsPerOp() == 0 {
			tw.AppendRow(table.Row{test, "-", "skipped", "-"})
			continue
		}
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		tw.AppendRow(table.Row{
			test,
			result.N,
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
		})
	}

	tw.SetColumnConfigs(rightAligned(2, 3, 4))
	return tw.Render()
}

// renderLatency renders the round trip statistics of the connection as a table
func renderLatency(s client.LatencySnapshot) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Round Trip Latency")
	tw.AppendHeader(table.Row{"Replies", "Min", "Mean", "P50", "P95", "P99", "Max", "Replies/sec (1m)"})
	tw.AppendRow(table.Row{
		s.Count,
		s.Min.String(),
		s.Mean.String(),
		s.P50.String(),
		s.P95.String(),
		s.P99.String(),
		s.Max.String(),
		fmt.Sprintf("%.1f", s.Rate1),
	})
	tw.SetColumnConfigs(rightAligned(1, 2, 3, 4, 5, 6, 7, 8))
	return tw.Render()
}

func rightAligned(columns ...int) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	return configs
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"URL", "TimeoutSec", "MaxPending", "SendRate",
		"Threads", "LargeRequestKB", "Burst",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.URL,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.MaxPending),
			strconv.FormatFloat(config.SendRate, 'f', -1, 64),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeRequestKB),
			strconv.Itoa(perfBurstSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
