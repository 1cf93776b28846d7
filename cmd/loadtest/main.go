package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	apiPrefix      = "/api/v1"
	transportError = "transport_error"
)

type loadMode string

const (
	modeCreate             loadMode = "create"
	modeCreateUpdate       loadMode = "create-update"
	modeCreateUpdateVerify loadMode = "create-update-verify"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	updates     int
	items       int
	price       decimal.Decimal
	runTag      string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Statuses  map[string]int64 `json:"statuses"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	statuses  map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

// record учитывает один вызов; status содержит HTTP-код или transportError.
func (c *collector) record(method string, latency time.Duration, status string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, found := c.methods[method]
	if !found {
		stats = &methodStats{
			statuses: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if ok {
		stats.success++
	} else {
		stats.failed++
	}
	stats.statuses[status]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenarioStats := c.methods["scenario"]; scenarioStats != nil {
		result.TotalScenarios = scenarioStats.calls
		result.SuccessScenarios = scenarioStats.success
		result.FailedScenarios = scenarioStats.failed
		result.ErrorRate = ratio(scenarioStats.failed, scenarioStats.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenarioStats.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		statuses := make(map[string]int64, len(stats.statuses))
		for status, count := range stats.statuses {
			statuses[status] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Statuses:  statuses,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func parseConfig(args []string) (config, error) {
	var cfg config
	var modeValue, timeoutValue, durationValue, priceValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "HTTP API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	fs.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-update | create-update-verify")
	fs.IntVar(&cfg.updates, "updates", 3, "item set replacements per scenario in update modes")
	fs.IntVar(&cfg.items, "items", 2, "items per order")
	fs.StringVar(&priceValue, "price", "10.00", "catalog product price")
	fs.StringVar(&cfg.runTag, "run-tag", "load", "prefix for generated ids")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	price, err := decimal.NewFromString(strings.TrimSpace(priceValue))
	if err != nil {
		return cfg, fmt.Errorf("parse price: %w", err)
	}
	cfg.price = price

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode
	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")

	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("addr is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.updates < 0:
		return cfg, errors.New("updates must be >= 0")
	case cfg.items < 0:
		return cfg, errors.New("items must be >= 0")
	case cfg.price.IsNegative():
		return cfg, errors.New("price must be >= 0")
	case strings.TrimSpace(cfg.runTag) == "":
		return cfg, errors.New("run-tag is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateUpdate:
		return modeCreateUpdate, nil
	case modeCreateUpdateVerify:
		return modeCreateUpdateVerify, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result, err := run(context.Background(), cfg, &http.Client{Timeout: cfg.timeout}, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

// run засевает каталог, прогоняет сценарии пулом воркеров и печатает отчёт.
func run(ctx context.Context, cfg config, httpClient *http.Client, out io.Writer) (report, error) {
	startedAt := time.Now()
	runID := fmt.Sprintf("%s-%s", cfg.runTag, uuid.NewString()[:8])
	col := newCollector()
	client := &apiClient{baseURL: cfg.baseURL, http: httpClient, timeout: cfg.timeout, col: col}

	catalog, err := client.seedCatalog(ctx, runID, cfg.price)
	if err != nil {
		return report{}, fmt.Errorf("seed catalog: %w", err)
	}

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(ctx, client, cfg, catalog, id); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(out, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			return result, fmt.Errorf("write report: %w", err)
		}
	}
	return result, nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

type seededCatalog struct {
	runID      string
	customerID string
	productID  string
}

type itemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderPayload struct {
	ID         string        `json:"id,omitempty"`
	CustomerID string        `json:"customer_id"`
	Items      []itemPayload `json:"items"`
}

// itemSet строит набор позиций раунда: id уникальны в пределах прогона.
func itemSet(catalog seededCatalog, index, round, size int) []itemPayload {
	items := make([]itemPayload, 0, size)
	for i := 0; i < size; i++ {
		items = append(items, itemPayload{
			ID:        fmt.Sprintf("%s-%d-r%d-i%d", catalog.runID, index, round, i),
			ProductID: catalog.productID,
			Quantity:  round + i + 1,
		})
	}
	return items
}

func runScenario(ctx context.Context, client *apiClient, cfg config, catalog seededCatalog, index int) (err error) {
	scenarioStart := time.Now()
	defer func() {
		status := strconv.Itoa(http.StatusOK)
		if err != nil {
			status = "failed"
		}
		client.col.record("scenario", time.Since(scenarioStart), status, err == nil)
	}()

	orderID := fmt.Sprintf("%s-order-%d", catalog.runID, index)
	if err := client.createOrder(ctx, orderPayload{
		ID:         orderID,
		CustomerID: catalog.customerID,
		Items:      itemSet(catalog, index, 0, cfg.items),
	}); err != nil {
		return err
	}
	if cfg.mode == modeCreate {
		return nil
	}

	var last []itemPayload
	for round := 1; round <= cfg.updates; round++ {
		last = itemSet(catalog, index, round, cfg.items)
		if err := client.updateOrder(ctx, orderID, orderPayload{CustomerID: catalog.customerID, Items: last}); err != nil {
			return err
		}
	}
	if cfg.mode != modeCreateUpdateVerify || cfg.updates == 0 {
		return nil
	}

	got, err := client.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(got.Items) != len(last) {
		return fmt.Errorf("order %s: expected %d items after update, got %d", orderID, len(last), len(got.Items))
	}
	for i := range last {
		if got.Items[i].ID != last[i].ID {
			return fmt.Errorf("order %s: item %d is %s, expected %s", orderID, i, got.Items[i].ID, last[i].ID)
		}
	}
	return nil
}

type apiClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	col     *collector
}

func (c *apiClient) seedCatalog(ctx context.Context, runID string, price decimal.Decimal) (seededCatalog, error) {
	catalog := seededCatalog{
		runID:      runID,
		customerID: runID + "-customer",
		productID:  runID + "-product",
	}

	customer := map[string]any{
		"id":   catalog.customerID,
		"name": "Load " + runID,
		"address": map[string]any{
			"street": "Load Street", "number": 1, "zip": "0000", "city": "Loadtown",
		},
	}
	if err := c.call(ctx, "CreateCustomer", http.MethodPost, apiPrefix+"/customers", customer, http.StatusCreated, nil); err != nil {
		return catalog, err
	}

	product := map[string]any{"id": catalog.productID, "name": "Load product", "price": price.String()}
	if err := c.call(ctx, "CreateProduct", http.MethodPost, apiPrefix+"/products", product, http.StatusCreated, nil); err != nil {
		return catalog, err
	}
	return catalog, nil
}

func (c *apiClient) createOrder(ctx context.Context, order orderPayload) error {
	return c.call(ctx, "CreateOrder", http.MethodPost, apiPrefix+"/orders", order, http.StatusCreated, nil)
}

func (c *apiClient) updateOrder(ctx context.Context, id string, order orderPayload) error {
	return c.call(ctx, "UpdateOrder", http.MethodPut, apiPrefix+"/orders/"+id, order, http.StatusOK, nil)
}

func (c *apiClient) getOrder(ctx context.Context, id string) (orderPayload, error) {
	var order orderPayload
	err := c.call(ctx, "GetOrder", http.MethodGet, apiPrefix+"/orders/"+id, nil, http.StatusOK, &order)
	return order, err
}

// call выполняет запрос, записывает задержку и код ответа в коллектор.
func (c *apiClient) call(ctx context.Context, method, httpMethod, path string, body any, wantStatus int, out any) error {
	start := time.Now()
	status, err := c.do(ctx, httpMethod, path, body, wantStatus, out)
	c.col.record(method, time.Since(start), status, err == nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", httpMethod, path, err)
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, httpMethod, path string, body any, wantStatus int, out any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return transportError, fmt.Errorf("encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, &buf)
	if err != nil {
		return transportError, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError, err
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return status, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return status, fmt.Errorf("decode response: %w", err)
		}
	}
	return status, nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Load test summary")
	_, _ = fmt.Fprintf(out, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode,
		runTarget(cfg),
		result.TotalScenarios,
		result.SuccessScenarios,
		result.FailedScenarios,
		result.ErrorRate,
	)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name == "scenario" {
			continue
		}
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(out,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P95,
		)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
