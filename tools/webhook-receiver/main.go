// webhook-receiver is a standalone endpoint for verifying product-importer
// deliveries by hand. It logs every payload, verifies signatures when SECRET
// is set, and can inject failures (FAIL_STATUS, FAIL_COUNT) to watch the
// dispatcher's retry and breaker behavior.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

type request struct {
	Timestamp string            `json:"timestamp"`
	Event     string            `json:"event"`
	SKU       string            `json:"sku,omitempty"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
}

type stats struct {
	Count        int64            `json:"count"`
	ByEvent      map[string]int64 `json:"by_event"`
	BadSignature int64            `json:"bad_signature"`
	Failed       int64            `json:"failed_injected"`
	LastRequests []request        `json:"last_requests"`
	Since        string           `json:"since"`
}

// payload is the delivery wire format; only the fields the log cares about.
type payload struct {
	Event string `json:"event"`
	Data  struct {
		SKU string `json:"sku"`
	} `json:"data"`
}

var (
	mu           sync.Mutex
	count        int64
	byEvent      = make(map[string]int64)
	badSignature int64
	failed       int64
	lastRequests []request
	since        time.Time
	maxStored    = 50

	secret     string
	failStatus int
	failCount  int64
)

func main() {
	since = time.Now().UTC()

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	secret = os.Getenv("SECRET")
	if v := os.Getenv("FAIL_STATUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 400 && n < 600 {
			failStatus = n
		}
	}
	if v := os.Getenv("FAIL_COUNT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			failCount = n
		}
	}

	http.HandleFunc("/hook", hookHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		byEvent = make(map[string]int64)
		badSignature = 0
		failed = 0
		lastRequests = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	if secret != "" {
		log.Printf("webhook-receiver: signature verification enabled")
	}
	if failStatus != 0 {
		log.Printf("webhook-receiver: injecting %d for the first %d deliveries", failStatus, failCount)
	}
	log.Printf("webhook-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func hookHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	if secret != "" {
		sig := r.Header.Get("X-Importer-Signature")
		if !verifySignature(secret, body, sig) {
			mu.Lock()
			badSignature++
			mu.Unlock()
			log.Printf("hook REJECTED: bad signature (got %q)", sig)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, `{"error":"bad signature"}`)
			return
		}
	}

	var p payload
	_ = json.Unmarshal(body, &p)

	headers := make(map[string]string)
	for _, k := range []string{"X-Importer-Delivery-ID", "X-Importer-Event-Seq", "X-Importer-Signature", "Content-Type"} {
		if v := r.Header.Get(k); v != "" {
			headers[k] = v
		}
	}

	req := request{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Event:     p.Event,
		SKU:       p.Data.SKU,
		Headers:   headers,
		Body:      string(body),
	}

	mu.Lock()
	count++
	byEvent[p.Event]++
	lastRequests = append(lastRequests, req)
	if len(lastRequests) > maxStored {
		lastRequests = lastRequests[len(lastRequests)-maxStored:]
	}
	current := count
	injectFail := failStatus != 0 && failed < failCount
	if injectFail {
		failed++
	}
	mu.Unlock()

	if injectFail {
		log.Printf("hook #%d: %s sku=%s -> injected %d", current, p.Event, p.Data.SKU, failStatus)
		w.WriteHeader(failStatus)
		fmt.Fprintf(w, `{"error":"injected failure"}`)
		return
	}

	if p.Data.SKU != "" {
		log.Printf("hook #%d: %s sku=%s seq=%s", current, p.Event, p.Data.SKU, headers["X-Importer-Event-Seq"])
	} else {
		log.Printf("hook #%d: %s body=%s", current, p.Event, string(body))
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:        count,
		ByEvent:      byEvent,
		BadSignature: badSignature,
		Failed:       failed,
		LastRequests: lastRequests,
		Since:        since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
