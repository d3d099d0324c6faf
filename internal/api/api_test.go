package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/database"
	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/internal/messaging"
	"github.com/kbukum/shopstream/internal/shop"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/sse"
	"github.com/kbukum/shopstream/storage/local"
)

const chunkFile = "book.txt"

type env struct {
	srv *httptest.Server
	bus *bus.Bus
	hub *sse.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		LogLevel: "silent",
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(shop.Models()...); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	files, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if err := shop.Seed(ctx, db, files, chunkFile, logger.Nop()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	b, err := bus.New(bus.Config{}, bus.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	hub := sse.NewHub(sse.Config{})
	go hub.Run()
	if err := messaging.Register(b, hub, logger.Nop()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("bus.Start: %v", err)
	}

	cfg := shop.Config{TickPeriod: 5 * time.Millisecond, ChunkSize: 4, ChunkFile: chunkFile}
	svc := shop.NewService(cfg,
		shop.NewUserStore(db, rand.New(rand.NewPCG(1, 2))),
		shop.NewProductStore(db, rand.New(rand.NewPCG(3, 4))),
		shop.NewOrderStore(db),
		shop.NewFileSource(files, cfg.ChunkSize),
		b,
		shop.WithLogger(logger.Nop()),
	)

	r := gin.New()
	NewHandler(svc, b, hub, WithLogger(logger.Nop()), WithKeepAlive(time.Second)).Register(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		_ = b.Stop(context.Background())
		hub.Stop()
	})
	return &env{srv: srv, bus: b, hub: hub}
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

// stream reads an endless response for d and returns what arrived.
func (e *env) stream(t *testing.T, path string, d time.Duration) (*http.Response, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+path, http.NoBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func dataOf[T any](t *testing.T, body string) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return envelope.Data
}

func errorCode(t *testing.T, body string) errors.ErrorCode {
	t.Helper()
	var resp errors.ErrorResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return resp.Error.Code
}

func ndjson[T any](t *testing.T, body string) []T {
	t.Helper()
	var out []T
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		out = append(out, v)
	}
	return out
}

func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestCreateUser(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/shop/users/Carol", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	got := dataOf[struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}](t, body)
	if got.ID == 0 || got.Name != "Carol" {
		t.Errorf("created = %+v", got)
	}

	resp, body = e.do(t, http.MethodPost, "/shop/users/Carol", "")
	if resp.StatusCode != http.StatusConflict || errorCode(t, body) != errors.ErrCodeAlreadyExists {
		t.Errorf("duplicate: status = %d, body %s", resp.StatusCode, body)
	}
}

func TestCreateUser_InvalidName(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodPost, "/shop/users/"+strings.Repeat("x", MaxNameLength+1), "")
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, body) != errors.ErrCodeInvalidInput {
		t.Errorf("status = %d, body %s", resp.StatusCode, body)
	}
}

func TestAddUser(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodPost, "/shop/users", `{"name":"Dave"}`)
	if got := dataOf[string](t, body); got != "New User Dave inserted" {
		t.Errorf("first = %q", got)
	}
	resp, body := e.do(t, http.MethodPost, "/shop/users", `{"name":"Dave"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := dataOf[string](t, body); !strings.HasPrefix(got, "User not inserted: ") {
		t.Errorf("second = %q", got)
	}

	resp, body = e.do(t, http.MethodPost, "/shop/users", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, body %s", resp.StatusCode, body)
	}
}

func TestUserName(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		want string
	}{
		{"Alice", "Alice"},
		{"Nobody", shop.Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := e.do(t, http.MethodGet, "/shop/user/"+tt.name, "")
			if got := dataOf[string](t, body); got != tt.want {
				t.Errorf("name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserName_GreetsSubscribers(t *testing.T) {
	e := newEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/shop/greetings", http.NoBody)
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET greetings: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}
	waitFor("event: " + sse.EventConnected)

	if _, body := e.do(t, http.MethodGet, "/shop/user/Bob", ""); dataOf[string](t, body) != "Bob" {
		t.Fatalf("lookup body %s", body)
	}
	waitFor("event: " + messaging.GreetingEvent)
	if got := waitFor("data: "); got != "data: Hello chained - 1002" {
		t.Errorf("greeting = %q", got)
	}
}

func TestUsers(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/shop/users", "")
	if ct := resp.Header.Get("Content-Type"); ct != ContentTypeNDJSON {
		t.Errorf("content type = %q", ct)
	}
	got := ndjson[string](t, body)
	if strings.Join(got, ",") != strings.Join(shop.SeedUsers, ",") {
		t.Errorf("users = %v", got)
	}
}

func TestProducts(t *testing.T) {
	e := newEnv(t)
	_, body := e.do(t, http.MethodGet, "/shop/products", "")
	got := ndjson[shop.ProductModel](t, body)
	if len(got) != len(shop.SeedProducts) {
		t.Fatalf("got %d products, want %d", len(got), len(shop.SeedProducts))
	}
	names := make(map[string]bool, len(got))
	for _, p := range got {
		names[p.Name] = true
	}
	if !names["Blue Notebook"] {
		t.Errorf("expected capitalized name in %v", got)
	}
}

func TestOrdersForUser(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/shop/orders/Bob", "")
	orders := ndjson[shop.Order](t, body)
	if len(orders) != 1 || len(orders[0].Products) != 2 {
		t.Fatalf("orders = %+v", orders)
	}

	resp, body := e.do(t, http.MethodGet, "/shop/orders/Nobody", "")
	if resp.StatusCode != http.StatusNotFound || errorCode(t, body) != errors.ErrCodeNotFound {
		t.Errorf("unknown user: status = %d, body %s", resp.StatusCode, body)
	}
}

func TestOrdersPerUser(t *testing.T) {
	e := newEnv(t)
	_, body := e.do(t, http.MethodGet, "/shop/orders", "")
	if orders := ndjson[shop.Order](t, body); len(orders) != 1 {
		t.Errorf("orders = %+v", orders)
	}
}

func TestRecommendations(t *testing.T) {
	e := newEnv(t)
	resp, body := e.stream(t, "/shop/recommendations", 100*time.Millisecond)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "event: recommendation") {
		t.Fatalf("no recommendation events in %q", body)
	}
	for _, d := range sseData(body) {
		var p shop.Product
		if err := json.Unmarshal([]byte(d), &p); err != nil || p.Name == "" {
			t.Errorf("bad product %q: %v", d, err)
		}
	}
}

func TestStreams_Limit(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/shop/users?limit=1", "")
	if got := ndjson[string](t, body); len(got) != 1 || got[0] != "Alice" {
		t.Errorf("users = %v", got)
	}

	resp, body := e.do(t, http.MethodGet, "/shop/random-recommendations?limit=3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := sseData(body); len(got) != 3 {
		t.Errorf("got %d events, want 3: %q", len(got), body)
	}

	_, body = e.do(t, http.MethodGet, "/shop/read-chunk?limit=2", "")
	if body != "Well, Pr" {
		t.Errorf("chunks = %q", body)
	}

	for _, bad := range []string{"0", "-1", "abc"} {
		resp, body := e.do(t, http.MethodGet, "/shop/products?limit="+bad, "")
		if resp.StatusCode != http.StatusBadRequest || errorCode(t, body) != errors.ErrCodeInvalidInput {
			t.Errorf("limit=%s: status = %d, body %s", bad, resp.StatusCode, body)
		}
	}
}

func TestRandomRecommendation(t *testing.T) {
	e := newEnv(t)
	_, body := e.do(t, http.MethodGet, "/shop/random-recommendation", "")
	got := dataOf[string](t, body)
	if !strings.HasPrefix(got, "Hello ") || !strings.Contains(got, ", we recommend you ") {
		t.Errorf("recommendation = %q", got)
	}
}

func TestRandomRecommendations(t *testing.T) {
	e := newEnv(t)
	_, body := e.stream(t, "/shop/random-recommendations", 100*time.Millisecond)
	data := sseData(body)
	if len(data) == 0 {
		t.Fatalf("no events in %q", body)
	}
	for _, d := range data {
		name, _, ok := strings.Cut(d, " : ")
		if !ok || (name != "Alice" && name != "Bob") {
			t.Errorf("event = %q", d)
		}
	}
}

func TestReadChunk(t *testing.T) {
	e := newEnv(t)
	resp, body := e.stream(t, "/shop/read-chunk", 80*time.Millisecond)
	if ct := resp.Header.Get("Content-Type"); ct != ContentTypeText {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(body, "Well") {
		t.Errorf("body = %q", body)
	}
}

func TestReadChunk_MissingFile(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/shop/read-chunk?path=missing.txt", "")
	if resp.StatusCode != http.StatusNotFound || errorCode(t, body) != errors.ErrCodeNotFound {
		t.Errorf("status = %d, body %s", resp.StatusCode, body)
	}
}

func TestDeadLetters(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/shop/dead-letters", "")
	if got := dataOf[[]bus.DeadLetter](t, body); len(got) != 0 {
		t.Fatalf("expected no dead letters, got %+v", got)
	}

	if err := e.bus.Publish(messaging.UserChannel, "not a number"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, body = e.do(t, http.MethodGet, "/shop/dead-letters", "")
		if got := dataOf[[]json.RawMessage](t, body); len(got) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dead letter never recorded: %s", body)
}

func TestStreamNDJSON_FailureAfterItems(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)

	p := pipeline.Concat(
		pipeline.FromSlice([]int{1, 2}),
		pipeline.Failed[int](errors.UpstreamFailure("catalog", io.ErrUnexpectedEOF)),
	)
	n, err := StreamNDJSON(c, p)
	if n != 2 || !errors.IsCode(err, errors.ErrCodeUpstreamFailure) {
		t.Fatalf("n=%d err=%v", n, err)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 || errorCode(t, lines[2]) != errors.ErrCodeUpstreamFailure {
		t.Errorf("body = %q", rr.Body.String())
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestRespondDeferred(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		d          *deferred.Deferred[string]
		wantStatus int
	}{
		{"value", deferred.Succeed("ok"), http.StatusOK},
		{"not found", deferred.Fail[string](errors.NotFound("user", "x")), http.StatusNotFound},
		{"unknown error", deferred.Fail[string](io.EOF), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			RespondDeferred(c, tt.d)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}
