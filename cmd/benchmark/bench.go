package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"

	"github.com/nulzo/prism-router/internal/cli"
	"github.com/nulzo/prism-router/internal/config"
	"github.com/nulzo/prism-router/internal/gateway"
	"github.com/nulzo/prism-router/internal/llm"
	"github.com/nulzo/prism-router/internal/platform/metrics"
	"github.com/nulzo/prism-router/internal/server"

	_ "github.com/nulzo/prism-router/internal/llm/openai"
)

var (
	streamChunks = [][]byte{
		[]byte(`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"delta":{"content":"Bench"}}]}` + "\n\n"),
		[]byte(`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"delta":{"content":"mark"}}]}` + "\n\n"),
		[]byte(`data: {"id":"bench","object":"chat.completion.chunk","choices":[{"delta":{"content":" response"}}]}` + "\n\n"),
	}
	streamDone = []byte("data: [DONE]\n\n")
	unaryResp  = []byte(`{"id":"bench-123","object":"chat.completion","choices":[{"message":{"role":"assistant","content":"Hello"}}]}`)
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	stream := flag.Bool("stream", false, "Use streaming requests")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	failRate := flag.Float64("fail-rate", 0.1, "Share of primary upstream requests answered with a 503")
	strategy := flag.String("strategy", "least-latency", "Routing strategy")
	flag.Parse()

	// upstreams: a flaky fast one and a healthy slow one
	primary := httptest.NewServer(mockUpstream(5*time.Millisecond, *failRate))
	defer primary.Close()
	secondary := httptest.NewServer(mockUpstream(25*time.Millisecond, 0))
	defer secondary.Close()

	app, err := newApp(primary.URL, secondary.URL, *strategy)
	if err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer app.Close()

	done := make(chan struct{})
	go monitorResources(done)

	mode := "Unary"
	body := `{"model": "bench-model", "messages": [{"role": "user", "content": "Hello"}]}`
	if *stream {
		mode = "Streaming"
		body = `{"model": "bench-model", "stream": true, "messages": [{"role": "user", "content": "Hello"}]}`
	}
	target := app.URL + "/v1/chat/completions"

	fmt.Printf("%s Running %s benchmark: %s duration, %d req/s, strategy %s\n",
		cli.Arrow(), mode, *duration, *rate, cli.Style(*strategy, cli.Cyan))

	targeter := vegeta.NewStaticTargeter(vegeta.Target{
		Method: http.MethodPost,
		URL:    target,
		Body:   []byte(body),
		Header: http.Header{"Content-Type": []string{"application/json"}},
	})

	if *chaos {
		fmt.Printf("%s chaos mode: random client disconnects\n", cli.WarningSign())
		go startChaosMonkey(target, min(max(*rate/10, 5), 50), done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var m vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		m.Add(res)
	}
	m.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", m.Latencies.P99)
	fmt.Println("Mean:            ", m.Latencies.Mean)
	fmt.Println("Max:             ", m.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", m.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", m.Throughput)
	fmt.Println("--------------------------------------------------")

	if len(m.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		for i, msg := range m.Errors {
			if i == 5 {
				break
			}
			fmt.Println(cli.CrossMark(), msg)
		}
	}

	printDeploymentStats(app.URL)
}

func newApp(primaryURL, secondaryURL, strategy string) (*httptest.Server, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "production"},
		Router: config.RouterConfig{
			Strategy:         strategy,
			MaxRetries:       3,
			RetryBaseDelayMs: 10,
			RetryMaxDelayMs:  100,
		},
		Providers: []config.ProviderConfig{
			{ID: "primary", Type: "openai", APIKey: "mock-key", BaseURL: primaryURL, Enabled: true},
			{ID: "secondary", Type: "openai", APIKey: "mock-key", BaseURL: secondaryURL, Enabled: true},
		},
		Deployments: []config.DeploymentConfig{
			{Name: "bench-primary", ModelAlias: "bench-model", Provider: "primary", UpstreamModel: "gpt-3.5-turbo", Priority: 10},
			{Name: "bench-secondary", ModelAlias: "bench-model-b", Provider: "secondary", UpstreamModel: "gpt-3.5-turbo", Priority: 1},
		},
		Fallbacks: map[string][]string{"bench-model": {"bench-model-b"}},
	}

	logger := zap.NewNop()
	factory := llm.NewFactory()
	gateway.BootstrapProviders(context.Background(), factory, cfg.Providers, false, logger)
	deployments := gateway.BootstrapDeployments(factory, cfg.Deployments, logger)

	collector := metrics.NewCollector("bench")
	rt, err := gateway.NewRouter(logger, factory, gateway.ConfigFrom(cfg, deployments), gateway.WithMetrics(collector))
	if err != nil {
		return nil, err
	}

	return httptest.NewServer(server.New(cfg, logger, rt, nil, collector).Handler()), nil
}

func mockUpstream(latency time.Duration, failRate float64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		time.Sleep(latency)
		if rand.Float64() < failRate {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(unaryResp)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, chunk := range streamChunks {
			_, _ = w.Write(chunk)
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(latency)
		}
		_, _ = w.Write(streamDone)
	})
	return mux
}

func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(concurrency)

	payload := `{"model": "bench-model", "stream": true, "messages": [{"role": "user", "content": "Chaos Request"}]}`
	for range concurrency {
		go func() {
			defer wg.Done()
			client := &http.Client{}
			for {
				select {
				case <-done:
					return
				default:
				}

				// disconnect somewhere between 1ms and 200ms
				ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rand.IntN(200)+1)*time.Millisecond)
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
				req.Header.Set("Content-Type", "application/json")
				if resp, err := client.Do(req); err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
				cancel()
				time.Sleep(time.Duration(rand.IntN(50)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

func monitorResources(done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Printf("%-10s %-10s %-10s %-10s\n", "Time", "Heap(MB)", "Alloc(MB)", "Goroutines")
	var ms runtime.MemStats
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&ms)
			fmt.Printf("%-10s %-10.2f %-10.2f %-10d\n",
				time.Now().Format("15:04:05"),
				float64(ms.HeapInuse)/1024/1024,
				float64(ms.Alloc)/1024/1024,
				runtime.NumGoroutine(),
			)
		}
	}
}

func printDeploymentStats(baseURL string) {
	resp, err := http.Get(baseURL + "/v1/admin/stats")
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.CrossMark(), err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var stats any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Fprintln(os.Stderr, cli.CrossMark(), err)
		return
	}
	fmt.Println(cli.CheckMark(), "deployment statistics")
	fmt.Println(cli.PrettyFormat(stats))
}
