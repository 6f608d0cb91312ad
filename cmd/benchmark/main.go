// Benchmark tool for testing Heron against labeled claim data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//   go run cmd/benchmark/main.go -generate 5000 -url http://localhost:8080
//
// This tool:
//  1. Reads labeled claim data (or generates a synthetic set)
//  2. Sends each claim to Heron for ingestion and scoring
//  3. Compares Heron's fraud verdict with the actual labels
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim is one benchmark input row.
type LabeledClaim struct {
	Amount     float64
	ClaimType  string
	Age        int
	LengthDays int
	IsFraud    bool
}

// IngestRequest is the Heron API request format.
type IngestRequest struct {
	DocumentName string         `json:"documentName"`
	Fields       map[string]any `json:"fields"`
}

// IngestResponse is the Heron API response format.
type IngestResponse struct {
	Claim struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"claim"`
	Prediction struct {
		FraudScore      float64 `json:"fraudScore"`
		IsFraudulent    bool    `json:"isFraudulent"`
		ReserveEstimate float64 `json:"reserveEstimate"`
		ModelVersion    string  `json:"modelVersion"`
	} `json:"prediction"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Fraud scored fraudulent
	FalsePositives int64 // Non-fraud scored fraudulent
	TrueNegatives  int64 // Non-fraud scored clean
	FalseNegatives int64 // Fraud scored clean (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	generate := flag.Int("generate", 0, "Generate N synthetic claims instead of reading a CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	email := flag.String("email", "benchmark@example.com", "Account email")
	password := flag.String("password", "benchmark-pass", "Account password")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each claim result")
	flag.Parse()

	if *csvPath == "" && *generate == 0 {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("       benchmark -generate 5000 [-url http://localhost:8080]")
		fmt.Println("\nCSV columns: claim_amount,claim_type,claimant_age,claim_length_days,is_fraud")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HERON BENCHMARK - Claim Fraud Detection              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHeron URL:   %s\n", *baseURL)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	token, err := obtainToken(*baseURL, *email, *password)
	if err != nil {
		fmt.Printf("ERROR: Failed to authenticate: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Authenticated")

	var claims []LabeledClaim
	if *csvPath != "" {
		fmt.Printf("\nReading claim data from %s...\n", *csvPath)
		claims, err = readClaimsCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("\nGenerating %d synthetic claims...\n", *generate)
		claims = generateClaims(*generate)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	fraudCount := 0
	for _, c := range claims {
		if c.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(claims)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(claims)-fraudCount, 100*float64(len(claims)-fraudCount)/float64(len(claims)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, token, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// obtainToken logs in, registering the benchmark account first when it
// does not exist yet.
func obtainToken(baseURL, email, password string) (string, error) {
	register, _ := json.Marshal(map[string]string{
		"email":     email,
		"firstName": "Benchmark",
		"lastName":  "Runner",
		"password":  password,
		"role":      "insurer",
	})
	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(register))
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	// 409 means the account already exists; login settles it either way.

	login, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	resp, err = http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(login))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func readClaimsCSV(path string, limit int) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"claim_amount", "claim_type", "claimant_age", "is_fraud"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var claims []LabeledClaim
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		amount, _ := strconv.ParseFloat(record[colIndex["claim_amount"]], 64)
		age, _ := strconv.Atoi(record[colIndex["claimant_age"]])
		lengthDays := 0
		if idx, ok := colIndex["claim_length_days"]; ok {
			lengthDays, _ = strconv.Atoi(record[idx])
		}

		claims = append(claims, LabeledClaim{
			Amount:     amount,
			ClaimType:  strings.ToLower(record[colIndex["claim_type"]]),
			Age:        age,
			LengthDays: lengthDays,
			IsFraud:    record[colIndex["is_fraud"]] == "1",
		})

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

// generateClaims builds a synthetic labeled set. Labels follow the
// documented risk factors with some noise so the benchmark is not a
// tautology.
func generateClaims(n int) []LabeledClaim {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	types := []string{"auto", "health", "property", "home", "life"}

	claims := make([]LabeledClaim, 0, n)
	for i := 0; i < n; i++ {
		c := LabeledClaim{
			Amount:     500 + rng.Float64()*79500,
			ClaimType:  types[rng.Intn(len(types))],
			Age:        18 + rng.Intn(65),
			LengthDays: rng.Intn(120),
		}

		risk := 0.0
		if c.Amount > 50000 {
			risk += 0.4
		} else if c.Amount > 30000 {
			risk += 0.2
		}
		if c.ClaimType == "auto" || c.ClaimType == "property" {
			risk += 0.2
		}
		if c.Age < 25 || c.Age > 70 {
			risk += 0.2
		}
		c.IsFraud = rng.Float64() < risk

		claims = append(claims, c)
	}
	return claims
}

func runBenchmark(claims []LabeledClaim, baseURL, token string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledClaim, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := ingestClaim(client, baseURL, token, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %v\n", err)
					}
					continue
				}

				if c.IsFraud {
					atomic.AddInt64(&metrics.TotalFraud, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonFraud, 1)
				}

				predicted := result.Prediction.IsFraudulent
				actual := c.IsFraud

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s Type: %-8s | Amount: $%10.2f | Age: %3d | Fraud: %-5v | Heron: %-5v (%.2f) | Reserve: $%10.2f\n",
						status,
						c.ClaimType,
						c.Amount,
						c.Age,
						actual,
						predicted,
						result.Prediction.FraudScore,
						result.Prediction.ReserveEstimate,
					)
				}
			}
		}()
	}

	for _, c := range claims {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

func ingestClaim(client *http.Client, baseURL, token string, c LabeledClaim) (*IngestResponse, error) {
	req := IngestRequest{
		DocumentName: "benchmark-claim.json",
		Fields: map[string]any{
			"claim_amount":      c.Amount,
			"claim_type":        c.ClaimType,
			"claimant_age":      c.Age,
			"claim_length_days": c.LengthDays,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   FRAUD       CLEAN")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of fraud verdicts, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f claims/sec\n", cps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - fraud verdicts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
