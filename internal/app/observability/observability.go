package observability

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type requestKey struct {
	Method string
	Path   string
	Status int
}

type requestStat struct {
	Count     int64
	LatencyMS float64
}

type uploadKey struct {
	Source  string
	Outcome string
}

// Collector keeps in-process counters and renders them in the Prometheus
// text format.
type Collector struct {
	db *sql.DB

	mu           sync.RWMutex
	requestStats map[requestKey]requestStat
	uploads      map[uploadKey]int64
	submissions  int64
	scoreRatio   float64
	startedAt    time.Time
}

func NewCollector(db *sql.DB) *Collector {
	return &Collector{
		db:           db,
		requestStats: make(map[requestKey]requestStat),
		uploads:      make(map[uploadKey]int64),
		startedAt:    time.Now(),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := requestKey{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		entry := map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
			"attempt_id": extractAttemptID(r.URL.Path),
			"test_id":    extractTestID(r.URL.Path),
			"method":     r.Method,
			"path":       path,
			"status":     rec.status,
			"latency_ms": latencyMS,
			"remote_ip":  strings.TrimSpace(r.RemoteAddr),
		}
		b, _ := json.Marshal(entry)
		log.Printf("%s", string(b))
	})
}

// ObserveSubmission records one scored attempt.
func (c *Collector) ObserveSubmission(score, total int) {
	if total <= 0 {
		return
	}
	c.mu.Lock()
	c.submissions++
	c.scoreRatio += float64(score) / float64(total)
	c.mu.Unlock()
}

// ObserveUpload records the outcome of a question set upload.
func (c *Collector) ObserveUpload(source string, ok bool) {
	outcome := "rejected"
	if ok {
		outcome = "created"
	}
	c.mu.Lock()
	c.uploads[uploadKey{Source: source, Outcome: outcome}]++
	c.mu.Unlock()
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	requests := make(map[requestKey]requestStat, len(c.requestStats))
	for k, v := range c.requestStats {
		requests[k] = v
	}
	uploads := make(map[uploadKey]int64, len(c.uploads))
	for k, v := range c.uploads {
		uploads[k] = v
	}
	submissions, scoreRatio, startedAt := c.submissions, c.scoreRatio, c.startedAt
	c.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("# quizdesk observability metrics\n")
	writeMetric(&sb, "quizdesk_uptime_seconds", "gauge", fmt.Sprintf("%.0f", time.Since(startedAt).Seconds()))

	keys := make([]requestKey, 0, len(requests))
	for k := range requests {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})
	sb.WriteString("# TYPE quizdesk_http_requests_total counter\n")
	sb.WriteString("# TYPE quizdesk_http_request_latency_ms_sum counter\n")
	for _, k := range keys {
		s := requests[k]
		labels := fmt.Sprintf("method=%q,path=%q,status=\"%d\"", k.Method, k.Path, k.Status)
		fmt.Fprintf(&sb, "quizdesk_http_requests_total{%s} %d\n", labels, s.Count)
		fmt.Fprintf(&sb, "quizdesk_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS)
	}

	writeMetric(&sb, "quizdesk_submissions_total", "counter", strconv.FormatInt(submissions, 10))
	writeMetric(&sb, "quizdesk_submission_score_ratio_sum", "counter", fmt.Sprintf("%.4f", scoreRatio))

	ukeys := make([]uploadKey, 0, len(uploads))
	for k := range uploads {
		ukeys = append(ukeys, k)
	}
	sort.Slice(ukeys, func(i, j int) bool {
		if ukeys[i].Source != ukeys[j].Source {
			return ukeys[i].Source < ukeys[j].Source
		}
		return ukeys[i].Outcome < ukeys[j].Outcome
	})
	sb.WriteString("# TYPE quizdesk_uploads_total counter\n")
	for _, k := range ukeys {
		fmt.Fprintf(&sb, "quizdesk_uploads_total{source=%q,outcome=%q} %d\n", k.Source, k.Outcome, uploads[k])
	}

	if c.db != nil {
		dbs := c.db.Stats()
		writeMetric(&sb, "quizdesk_db_open_connections", "gauge", strconv.Itoa(dbs.OpenConnections))
		writeMetric(&sb, "quizdesk_db_in_use_connections", "gauge", strconv.Itoa(dbs.InUse))
		writeMetric(&sb, "quizdesk_db_wait_count", "counter", strconv.FormatInt(dbs.WaitCount, 10))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func writeMetric(sb *strings.Builder, name, kind, value string) {
	fmt.Fprintf(sb, "# TYPE %s %s\n%s %s\n", name, kind, name, value)
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// extractAttemptID reads the id of /api/test/result/{id}.
func extractAttemptID(path string) int64 {
	return idAfter(path, "result")
}

// extractTestID covers /api/test/{id}/start and /api/admin/tests/{id}/...
func extractTestID(path string) int64 {
	if id := idAfter(path, "tests"); id > 0 {
		return id
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "test" && parts[3] == "start" {
		if id, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func idAfter(path, segment string) int64 {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == segment {
			if id, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
