package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"

	"github.com/spiffcs/gqlc/config"
)

// isolate points config lookups at empty temporary directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("AppData", home)
	t.Setenv("GQLC_TOKEN", "")

	work := t.TempDir()
	t.Chdir(work)

	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })
	return work
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeFor(t, 10*time.Second, stdin, args...)
}

// executeFor is execute with a deadline, for commands that run until
// interrupted.
func executeFor(t *testing.T, d time.Duration, stdin string, args ...string) (string, error) {
	t.Helper()
	root := New()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// graphqlServer answers every request with body and records what it saw.
func graphqlServer(t *testing.T, body string, header http.Header) (*httptest.Server, chan gqlRequest, chan string) {
	t.Helper()
	requests := make(chan gqlRequest, 16)
	auths := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests <- req
		auths <- r.Header.Get("Authorization")
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, requests, auths
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cmd := New()
	if cmd == nil {
		t.Fatal("New() returned nil")
	}
	if cmd.Use != "gqlc" {
		t.Errorf("expected Use to be 'gqlc', got %q", cmd.Use)
	}

	want := []string{"query", "mutate", "upload", "subscribe", "watch", "cache", "auth", "config", "ratelimit", "version"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub == cmd {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSubcommandConstructors(t *testing.T) {
	opts := NewOptions()
	tests := []struct {
		name string
		use  string
		got  string
	}{
		{"query", "query", NewCmdQuery(opts).Name()},
		{"mutate", "mutate", NewCmdMutate(opts).Name()},
		{"upload", "upload", NewCmdUpload(opts).Name()},
		{"subscribe", "subscribe", NewCmdSubscribe(opts).Name()},
		{"watch", "watch", NewCmdWatch(opts).Name()},
		{"cache", "cache", NewCmdCache(opts).Name()},
		{"auth", "auth", NewCmdAuth(opts).Name()},
		{"config", "config", NewCmdConfig().Name()},
		{"ratelimit", "ratelimit", NewCmdRateLimit(opts).Name()},
		{"version", "version", NewCmdVersion().Name()},
	}
	for _, tt := range tests {
		if tt.got != tt.use {
			t.Errorf("%s: Name() = %q, want %q", tt.name, tt.got, tt.use)
		}
	}
}

func TestNewOptions(t *testing.T) {
	tui := false
	opts := NewOptions(
		WithEndpoint("http://localhost/graphql"),
		WithHeaders("X-A: 1", "X-B: 2"),
		WithOutput("raw"),
		WithTimeout("5s"),
		WithCacheBackend("file"),
		WithVerbosity(2),
		WithTUI(&tui),
	)
	if opts.Endpoint != "http://localhost/graphql" || opts.Output != "raw" || opts.Timeout != "5s" {
		t.Errorf("unexpected options %+v", opts)
	}
	if len(opts.Headers) != 2 || opts.CacheBackend != "file" || opts.Verbosity != 2 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.TUI == nil || *opts.TUI {
		t.Errorf("TUI = %v, want false", opts.TUI)
	}
}

func TestParseVariables(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "none", want: nil},
		{name: "json object", json: `{"id":"1000","first":3}`, want: map[string]any{"id": "1000", "first": float64(3)}},
		{name: "string pair", pairs: []string{"episode=JEDI"}, want: map[string]any{"episode": "JEDI"}},
		{name: "json pair", pairs: []string{"first=3", "draft=true", "tags=[\"a\"]"}, want: map[string]any{"first": float64(3), "draft": true, "tags": []any{"a"}}},
		{name: "quoted number stays a string", pairs: []string{`id="42"`}, want: map[string]any{"id": "42"}},
		{name: "pairs win", json: `{"id":"1"}`, pairs: []string{"id=2"}, want: map[string]any{"id": float64(2)}},
		{name: "value with equals", pairs: []string{"q=a=b"}, want: map[string]any{"q": "a=b"}},
		{name: "empty value", pairs: []string{"q="}, want: map[string]any{"q": ""}},
		{name: "invalid json", json: `{"id":`, wantErr: true},
		{name: "json array", json: `[1]`, wantErr: true},
		{name: "missing equals", pairs: []string{"id"}, wantErr: true},
		{name: "missing key", pairs: []string{"=1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVariables(tt.json, tt.pairs)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseVariables() expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVariables() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseVariables() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hero.graphql", "\n{ hero { name } }\n")
	blank := writeFile(t, dir, "blank.graphql", "  \n")

	tests := []struct {
		name    string
		path    string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "file", path: path, want: "{ hero { name } }"},
		{name: "stdin", path: "-", stdin: "{ __typename }\n", want: "{ __typename }"},
		{name: "missing file", path: filepath.Join(dir, "nope.graphql"), wantErr: true},
		{name: "empty file", path: blank, wantErr: true},
		{name: "empty stdin", path: "-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readDocument(strings.NewReader(tt.stdin), tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readDocument() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "me.png", "png-bytes")
	blob := writeFile(t, dir, "blob", "raw")

	files, err := readFiles([]string{"image=" + png, "docs=" + blob})
	if err != nil {
		t.Fatalf("readFiles() error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("readFiles() returned %d files", len(files))
	}
	if files[0].FieldName != "image" || files[0].OriginalName != "me.png" || files[0].MimeType != "image/png" {
		t.Errorf("unexpected first file %+v", files[0])
	}
	if files[1].MimeType != "application/octet-stream" {
		t.Errorf("MimeType = %q, want application/octet-stream", files[1].MimeType)
	}
	data, _ := io.ReadAll(files[0].Data)
	if string(data) != "png-bytes" {
		t.Errorf("Data = %q", data)
	}

	for _, bad := range []string{"image", "=x", "image=", "image=" + filepath.Join(dir, "missing")} {
		if _, err := readFiles([]string{bad}); err == nil {
			t.Errorf("readFiles(%q) expected error", bad)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	isolate(t)

	cfg, err := loadConfig(NewOptions(
		WithEndpoint("https://api.example.com/graphql"),
		WithHeaders("X-Team: core", "X-Trace:abc"),
		WithTimeout("2m"),
		WithTokenEnv("MY_TOKEN"),
	))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Endpoint != "https://api.example.com/graphql" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if got, _ := cfg.GetTimeout(); got != 2*time.Minute {
		t.Errorf("GetTimeout() = %v, want 2m", got)
	}
	if got := cfg.GetTokenEnv(); got != "MY_TOKEN" {
		t.Errorf("GetTokenEnv() = %q, want MY_TOKEN", got)
	}
	h := cfg.HTTPHeaders()
	if h.Get("X-Team") != "core" || h.Get("X-Trace") != "abc" {
		t.Errorf("HTTPHeaders() = %v", h)
	}

	bad := []*Options{
		NewOptions(WithHeaders("no-colon")),
		NewOptions(WithTimeout("soon")),
		NewOptions(WithOutput("xml")),
		NewOptions(WithCacheBackend("redis")),
	}
	for _, opts := range bad {
		if _, err := loadConfig(opts); err == nil {
			t.Errorf("loadConfig(%+v) expected error", opts)
		}
	}
}

func TestTokenProvider(t *testing.T) {
	isolate(t)
	t.Setenv("MY_TOKEN", "abc123")

	cfg := &config.Config{Auth: &config.AuthConfig{TokenEnv: "MY_TOKEN"}}
	p, source := tokenProvider(context.Background(), cfg)
	if source != "$MY_TOKEN" {
		t.Errorf("source = %q, want $MY_TOKEN", source)
	}
	if tok, ok := p.AuthorizationToken(); !ok || tok != "abc123" {
		t.Errorf("AuthorizationToken() = %q, %v", tok, ok)
	}

	cfg.Auth.OAuth2 = &config.OAuth2Config{ClientID: "cli", TokenURL: "https://auth.example.com/token"}
	if _, source := tokenProvider(context.Background(), cfg); !strings.HasPrefix(source, "oauth2") {
		t.Errorf("source = %q, want oauth2 client credentials", source)
	}
}

func TestQueryCommand(t *testing.T) {
	work := isolate(t)
	t.Setenv("GQLC_TOKEN", "abc123")
	srv, requests, auths := graphqlServer(t, `{"data":{"hero":{"name":"R2-D2"}}}`, nil)
	doc := writeFile(t, work, "hero.graphql", `query Hero($episode: Episode) { hero(episode: $episode) { name } }`)

	out, err := execute(t, "", "query", doc, "-e", srv.URL, "-o", "raw", "--var", "episode=JEDI")
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if out != "{\"hero\":{\"name\":\"R2-D2\"}}\n" {
		t.Errorf("output = %q", out)
	}

	req := <-requests
	if req.OperationName != "Hero" || req.Variables["episode"] != "JEDI" {
		t.Errorf("server saw %+v", req)
	}
	if got := <-auths; got != "Bearer abc123" {
		t.Errorf("Authorization = %q, want Bearer abc123", got)
	}
}

func TestQueryCommand_TokenOverridesAuthorizationHeader(t *testing.T) {
	work := isolate(t)
	srv, _, auths := graphqlServer(t, `{"data":{"hero":{"name":"R2-D2"}}}`, nil)
	doc := writeFile(t, work, "hero.graphql", `query Hero { hero { name } }`)
	header := "Authorization: Bearer from-flag"

	if _, err := execute(t, "", "query", doc, "-e", srv.URL, "-H", header); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if got := <-auths; got != "Bearer from-flag" {
		t.Errorf("without token: Authorization = %q, want Bearer from-flag", got)
	}

	t.Setenv("GQLC_TOKEN", "abc123")
	if _, err := execute(t, "", "query", doc, "-e", srv.URL, "-H", header, "--policy", "network-only"); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if got := <-auths; got != "Bearer abc123" {
		t.Errorf("with token: Authorization = %q, want Bearer abc123", got)
	}
}

func TestQueryCommand_SeveralDocumentsPrintInOrder(t *testing.T) {
	work := isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.OperationName == "Slow" {
			time.Sleep(50 * time.Millisecond)
		}
		_, _ = io.WriteString(w, `{"data":{"op":"`+req.OperationName+`"}}`)
	}))
	t.Cleanup(srv.Close)

	slow := writeFile(t, work, "slow.graphql", `query Slow { op }`)
	fast := writeFile(t, work, "fast.graphql", `query Fast { op }`)

	out, err := execute(t, "", "query", slow, fast, "-e", srv.URL, "-o", "raw")
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if out != "{\"op\":\"Slow\"}\n{\"op\":\"Fast\"}\n" {
		t.Errorf("output = %q", out)
	}
}

func TestQueryCommand_Errors(t *testing.T) {
	work := isolate(t)
	srv, _, _ := graphqlServer(t, `{"data":null,"errors":[{"message":"hero not found"},{"message":"second"}]}`, nil)
	doc := writeFile(t, work, "hero.graphql", `{ hero { name } }`)
	mutation := writeFile(t, work, "like.graphql", `mutation { like }`)

	if _, err := execute(t, "", "query", doc, "-e", srv.URL); err == nil || !strings.Contains(err.Error(), "hero not found") {
		t.Errorf("query error = %v, want the first GraphQL error", err)
	}
	if _, err := execute(t, "", "query", mutation, "-e", srv.URL); err == nil {
		t.Error("query accepted a mutation document")
	}
	if _, err := execute(t, "", "query", doc); err == nil || !strings.Contains(err.Error(), "no endpoint") {
		t.Errorf("query without endpoint error = %v", err)
	}
	if _, err := execute(t, "", "query", doc, "-e", srv.URL, "--policy", "sometimes"); err == nil {
		t.Error("query accepted an unknown cache policy")
	}
}

func TestMutateCommand(t *testing.T) {
	isolate(t)
	srv, requests, _ := graphqlServer(t, `{"data":{"like":{"count":3}}}`, nil)

	out, err := execute(t, "mutation Like($id: ID!) { like(id: $id) { count } }", "mutate", "-", "-e", srv.URL, "--vars", `{"id":"7"}`, "--no-publish")
	if err != nil {
		t.Fatalf("mutate error: %v", err)
	}
	if !strings.Contains(out, `"count": 3`) {
		t.Errorf("output = %q, want indented JSON", out)
	}
	if req := <-requests; req.Variables["id"] != "7" {
		t.Errorf("server saw %+v", req)
	}
}

func TestUploadCommand(t *testing.T) {
	work := isolate(t)
	type seen struct {
		operations string
		fileMap    string
		file       string
	}
	got := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var s seen
		s.operations = r.FormValue("operations")
		s.fileMap = r.FormValue("map")
		if f, _, err := r.FormFile("0"); err == nil {
			data, _ := io.ReadAll(f)
			s.file = string(data)
		}
		got <- s
		_, _ = io.WriteString(w, `{"data":{"upload":{"ok":true}}}`)
	}))
	t.Cleanup(srv.Close)

	doc := writeFile(t, work, "avatar.graphql", `mutation Avatar($image: Upload!) { upload(image: $image) { ok } }`)
	img := writeFile(t, work, "me.png", "png-bytes")

	out, err := execute(t, "", "upload", doc, "--file", "image="+img, "-e", srv.URL, "-o", "raw")
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if out != "{\"upload\":{\"ok\":true}}\n" {
		t.Errorf("output = %q", out)
	}

	s := <-got
	if !strings.Contains(s.operations, `"image":null`) {
		t.Errorf("operations = %s, want the file variable nulled", s.operations)
	}
	if !strings.Contains(s.fileMap, "variables.image") {
		t.Errorf("map = %s", s.fileMap)
	}
	if s.file != "png-bytes" {
		t.Errorf("file part = %q", s.file)
	}

	if _, err := execute(t, "", "upload", doc, "-e", srv.URL); err == nil {
		t.Error("upload without --file succeeded")
	}
}

func TestWatchCommand_PrintsUntilInterrupted(t *testing.T) {
	work := isolate(t)
	srv, _, _ := graphqlServer(t, `{"data":{"hero":{"name":"R2-D2"}}}`, nil)
	doc := writeFile(t, work, "hero.graphql", `query Hero { hero { name } }`)

	out, err := executeFor(t, 500*time.Millisecond, "", "watch", doc, "-e", srv.URL, "-o", "raw", "--tui=false")
	if err != nil {
		t.Fatalf("watch error: %v", err)
	}
	if out != "{\"hero\":{\"name\":\"R2-D2\"}}\n" {
		t.Errorf("output = %q, want one delivery", out)
	}

	if _, err := execute(t, "", "watch", doc, "-e", srv.URL, "--poll", "10ms"); err == nil {
		t.Error("watch accepted a poll interval below the minimum")
	}
}

func TestCacheWriteThenRead(t *testing.T) {
	work := isolate(t)
	srv, _, _ := graphqlServer(t, `{"data":{}}`, nil)
	doc := writeFile(t, work, "hero.graphql", `query Hero { hero { name } }`)
	store := []string{"-e", srv.URL, "--cache", "file", "--cache-dir", filepath.Join(work, "store"), "-o", "raw"}

	out, err := execute(t, "", append([]string{"cache", "read", doc}, store...)...)
	if err != nil {
		t.Fatalf("cache read error: %v", err)
	}
	if out != "null\n" {
		t.Errorf("empty read = %q, want null", out)
	}

	if _, err := execute(t, "", append([]string{"cache", "write", doc, "--data", `{"hero":{"name":"Luke"}}`}, store...)...); err != nil {
		t.Fatalf("cache write error: %v", err)
	}
	out, err = execute(t, "", append([]string{"cache", "read", doc}, store...)...)
	if err != nil {
		t.Fatalf("cache read error: %v", err)
	}
	if out != "{\"hero\":{\"name\":\"Luke\"}}\n" {
		t.Errorf("read after write = %q", out)
	}

	out, err = execute(t, "", append([]string{"query", doc, "--policy", "cache-only"}, store...)...)
	if err != nil {
		t.Fatalf("cache-only query error: %v", err)
	}
	if out != "{\"hero\":{\"name\":\"Luke\"}}\n" {
		t.Errorf("cache-only query = %q", out)
	}

	if _, err := execute(t, "", append([]string{"cache", "clear"}, store...)...); err != nil {
		t.Fatalf("cache clear error: %v", err)
	}
	out, _ = execute(t, "", append([]string{"cache", "read", doc}, store...)...)
	if out != "null\n" {
		t.Errorf("read after clear = %q, want null", out)
	}

	if _, err := execute(t, "", append([]string{"cache", "write", doc, "--data", "{nope"}, store...)...); err == nil {
		t.Error("cache write accepted invalid JSON")
	}
}

func TestCacheStats(t *testing.T) {
	isolate(t)
	srv, _, _ := graphqlServer(t, `{"data":{}}`, nil)

	out, err := execute(t, "", "cache", "stats", "-e", srv.URL)
	if err != nil {
		t.Fatalf("cache stats error: %v", err)
	}
	for _, want := range []string{"Cache statistics:", "Backend:", "memory", "Total:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAuthStatus(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "auth", "status")
	if err != nil {
		t.Fatalf("auth status error: %v", err)
	}
	if !strings.Contains(out, "$GQLC_TOKEN") || !strings.Contains(out, "absent") {
		t.Errorf("output without token:\n%s", out)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-42",
		"iss": "https://auth.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("GQLC_TOKEN", token)

	out, err = execute(t, "", "auth", "status")
	if err != nil {
		t.Fatalf("auth status error: %v", err)
	}
	for _, want := range []string{"present", "user-42", "https://auth.example.com", "in "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, token) {
		t.Error("auth status printed the token")
	}
}

func TestRateLimitCommand(t *testing.T) {
	isolate(t)
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv, requests, _ := graphqlServer(t, `{"data":{"__typename":"Query"}}`, http.Header{
		"X-Ratelimit-Remaining": {"4990"},
		"X-Ratelimit-Limit":     {"5000"},
		"X-Ratelimit-Reset":     {strconv.FormatInt(reset, 10)},
	})

	out, err := execute(t, "", "ratelimit", "-e", srv.URL)
	if err != nil {
		t.Fatalf("ratelimit error: %v", err)
	}
	if !strings.Contains(out, "4990/5000") {
		t.Errorf("output missing remaining quota:\n%s", out)
	}
	if req := <-requests; req.OperationName != "RateLimitProbe" {
		t.Errorf("probe operation = %q", req.OperationName)
	}
}

func TestConfigSetThenShow(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "", "config", "set", "endpoint", "https://api.example.com/graphql"); err != nil {
		t.Fatalf("config set error: %v", err)
	}
	if _, err := execute(t, "", "config", "set", "cache.backend", "redis"); err == nil {
		t.Error("config set accepted an unknown backend")
	}
	if _, err := execute(t, "", "config", "set", "token", "abc"); err == nil {
		t.Error("config set stored a token")
	}

	out, err := execute(t, "", "config", "show", "-o", "json")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	var shown map[string]any
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("config show printed invalid JSON: %v\n%s", err, out)
	}
	if shown["endpoint"] != "https://api.example.com/graphql" {
		t.Errorf("endpoint = %v", shown["endpoint"])
	}
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "2\n", "config", "init"); err != nil {
		t.Fatalf("config init error: %v", err)
	}
	if _, err := os.Stat(config.LocalConfigPath()); err != nil {
		t.Errorf("local config not created: %v", err)
	}
	if _, err := execute(t, "", "config", "init", "--local"); err == nil {
		t.Error("config init overwrote an existing file")
	}
	if _, err := execute(t, "", "config", "init", "--local", "--global"); err == nil {
		t.Error("config init accepted --local with --global")
	}
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.0.0", "abc123", "2024-01-01")
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	for _, want := range []string{"gqlc 1.0.0", "abc123", "2024-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShouldUseTUI(t *testing.T) {
	force := true
	if shouldUseTUI(NewOptions(WithTUI(&force)), &bytes.Buffer{}) {
		t.Error("shouldUseTUI() = true for a non-terminal writer")
	}
	if shouldUseTUI(NewOptions(WithTUI(&force), WithVerbosity(1)), os.Stdout) {
		t.Error("shouldUseTUI() = true with verbose logging")
	}
}

func TestTUIFlag(t *testing.T) {
	opts := NewOptions()
	f := newTUIFlag(opts)
	if f.String() != "auto" {
		t.Errorf("String() = %q, want auto", f.String())
	}
	if err := f.Set("false"); err != nil || opts.TUI == nil || *opts.TUI {
		t.Errorf("Set(false) -> %v, %v", opts.TUI, err)
	}
	if err := f.Set("auto"); err != nil || opts.TUI != nil {
		t.Errorf("Set(auto) -> %v, %v", opts.TUI, err)
	}
	if err := f.Set("maybe"); err == nil {
		t.Error("Set(maybe) expected error")
	}
}
