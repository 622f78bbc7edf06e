package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		value   string
		want    loadMode
		wantErr bool
	}{
		{value: "place", want: modePlace},
		{value: " place-deliver ", want: modePlaceDeliver},
		{value: "place-deliver-return", want: modePlaceDeliverReturn},
		{value: "pay", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tc := range cases {
		mode, err := parseMode(tc.value)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.value, err)
		}
		if mode != tc.want {
			t.Fatalf("unexpected mode for %q: %s", tc.value, mode)
		}
	}
}

func TestShouldReturnScenario(t *testing.T) {
	if shouldReturnScenario(5, 0) {
		t.Fatal("rate 0 must never return")
	}
	if !shouldReturnScenario(5, 100) {
		t.Fatal("rate 100 must always return")
	}
	if !shouldReturnScenario(109, 10) {
		t.Fatal("index 109 with rate 10 must return")
	}
	if shouldReturnScenario(150, 10) {
		t.Fatal("index 150 with rate 10 must not return")
	}
}

func TestCollector_RecordAndSnapshot(t *testing.T) {
	col := newCollector()

	col.record("PlaceOrder", 10*time.Millisecond, "201", true)
	col.record("PlaceOrder", 30*time.Millisecond, "201", true)
	col.record("PlaceOrder", 20*time.Millisecond, "409", false)

	stats, ok := col.snapshot("PlaceOrder")
	if !ok {
		t.Fatal("expected PlaceOrder stats")
	}
	if stats.Calls != 3 || stats.Success != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.Statuses["201"] != 2 || stats.Statuses["409"] != 1 {
		t.Fatalf("unexpected statuses: %+v", stats.Statuses)
	}
	if stats.LatencyMs.Min != 10 || stats.LatencyMs.Max != 30 {
		t.Fatalf("unexpected latency bounds: %+v", stats.LatencyMs)
	}

	if _, ok := col.snapshot("unknown"); ok {
		t.Fatal("expected no stats for unknown method")
	}
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	col := newCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				col.record("scenario", time.Millisecond, "ok", true)
			}
		}()
	}
	wg.Wait()

	stats, ok := col.snapshot("scenario")
	if !ok {
		t.Fatal("expected scenario stats")
	}
	if stats.Calls != 1000 {
		t.Fatalf("unexpected call count: %d", stats.Calls)
	}
}

func TestCollector_BuildReport(t *testing.T) {
	col := newCollector()
	col.record("scenario", 10*time.Millisecond, "ok", true)
	col.record("scenario", 20*time.Millisecond, "failed", false)
	col.record("PlaceOrder", 5*time.Millisecond, "201", true)

	result := col.buildReport(time.Now(), 2*time.Second)

	if result.TotalScenarios != 2 || result.SuccessScenarios != 1 || result.FailedScenarios != 1 {
		t.Fatalf("unexpected scenario counters: %+v", result)
	}
	if result.ErrorRate != 0.5 {
		t.Fatalf("unexpected error rate: %f", result.ErrorRate)
	}
	if result.RPS != 1.0 {
		t.Fatalf("unexpected rps: %f", result.RPS)
	}
	if _, ok := result.Methods["PlaceOrder"]; !ok {
		t.Fatal("expected PlaceOrder in method reports")
	}
}

func TestBuildLatencySummary(t *testing.T) {
	empty := buildLatencySummary(nil)
	if empty.Min != 0 || empty.Max != 0 {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	summary := buildLatencySummary([]float64{30, 10, 20})
	if summary.Min != 10 || summary.Max != 30 || summary.Avg != 20 || summary.P50 != 20 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	if got := percentile(sorted, 50); got != 25 {
		t.Fatalf("unexpected p50: %f", got)
	}
	if got := percentile(sorted, 100); got != 40 {
		t.Fatalf("unexpected p100: %f", got)
	}
	if got := percentile([]float64{7}, 99); got != 7 {
		t.Fatalf("unexpected single-value percentile: %f", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("unexpected empty percentile: %f", got)
	}
}

func TestDispatchJobs_CountMode(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(jobs, config{total: 5})

	var got []int
	for id := range jobs {
		got = append(got, id)
	}
	if len(got) != 5 {
		t.Fatalf("unexpected job count: %d", len(got))
	}
}

func TestDispatchJobs_DurationModeHonorsTotalCap(t *testing.T) {
	jobs := make(chan int, 16)
	dispatchJobs(jobs, config{duration: time.Minute, total: 3, totalSet: true})

	count := 0
	for range jobs {
		count++
	}
	if count != 3 {
		t.Fatalf("unexpected job count: %d", count)
	}
}

func TestWriteJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	if err := writeJSONReport(path, report{TotalScenarios: 7}); err != nil {
		t.Fatalf("write report: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded report
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 7 {
		t.Fatalf("unexpected total: %d", decoded.TotalScenarios)
	}
}

func TestWriteJSONReport_RejectsBadPaths(t *testing.T) {
	if err := writeJSONReport(".", report{}); err == nil {
		t.Fatal("expected error for current directory path")
	}
	if err := writeJSONReport("../escape.json", report{}); err == nil {
		t.Fatal("expected error for parent directory path")
	}
}

// fakeAPI имитирует нужный сценариям срез REST API.
type fakeAPI struct {
	mu          sync.Mutex
	stockPuts   int
	orders      int
	statusMoves int
	returns     int
	failOrders  bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/stock"):
			f.stockPuts++
			writeJSON(w, http.StatusOK, map[string]interface{}{"qty": 1})
		case r.Method == http.MethodPost && r.URL.Path == "/api/orders":
			if f.failOrders {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "insufficient stock"})
				return
			}
			f.orders++
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"id":    "order-1",
				"items": []map[string]string{{"id": "item-1"}},
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/status"):
			f.statusMoves++
			writeJSON(w, http.StatusOK, map[string]string{"id": "order-1"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/returns":
			f.returns++
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"id":           "return-1",
				"refund_minor": 1000,
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		}
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func scenarioConfig(baseURL string, mode loadMode) config {
	return config{
		baseURL:    baseURL,
		timeout:    time.Second,
		mode:       mode,
		productTag: "prod-load",
		size:       "M",
		qty:        1,
		priceMinor: 1000,
		userTag:    "load",
	}
}

func TestRunScenario_PlaceMode(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	col := newCollector()
	if err := runScenario(srv.Client(), scenarioConfig(srv.URL, modePlace), 0, "run", col); err != nil {
		t.Fatalf("run scenario: %v", err)
	}

	if api.stockPuts != 1 || api.orders != 1 || api.statusMoves != 0 || api.returns != 0 {
		t.Fatalf("unexpected calls: %+v", api)
	}
	stats, ok := col.snapshot("scenario")
	if !ok || stats.Success != 1 {
		t.Fatalf("expected successful scenario, got %+v", stats)
	}
}

func TestRunScenario_FullReturnFlow(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	col := newCollector()
	if err := runScenario(srv.Client(), scenarioConfig(srv.URL, modePlaceDeliverReturn), 0, "run", col); err != nil {
		t.Fatalf("run scenario: %v", err)
	}

	if api.statusMoves != len(deliverySteps) {
		t.Fatalf("unexpected status moves: %d", api.statusMoves)
	}
	if api.returns != 1 {
		t.Fatalf("unexpected return calls: %d", api.returns)
	}
	returnStats, ok := col.snapshot("RequestReturn")
	if !ok || returnStats.Statuses["201"] != 1 {
		t.Fatalf("unexpected return stats: %+v", returnStats)
	}
}

func TestRunScenario_OrderFailureStopsScenario(t *testing.T) {
	api := &fakeAPI{failOrders: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	col := newCollector()
	err := runScenario(srv.Client(), scenarioConfig(srv.URL, modePlaceDeliverReturn), 0, "run", col)
	if err == nil {
		t.Fatal("expected scenario failure")
	}

	if api.statusMoves != 0 || api.returns != 0 {
		t.Fatalf("scenario must stop after failed order: %+v", api)
	}
	orderStats, ok := col.snapshot("PlaceOrder")
	if !ok || orderStats.Statuses["409"] != 1 {
		t.Fatalf("unexpected order stats: %+v", orderStats)
	}
	scenarioStats, ok := col.snapshot("scenario")
	if !ok || scenarioStats.Failed != 1 {
		t.Fatalf("unexpected scenario stats: %+v", scenarioStats)
	}
}
