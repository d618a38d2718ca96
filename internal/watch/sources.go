package watch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ajxchapman/goswatch/internal/cache"
	gctx "github.com/ajxchapman/goswatch/internal/context"
	"github.com/ajxchapman/goswatch/internal/registry"
)

func newDataWatch(r *registry.Resolved, fetch fetcher) (*DataWatch, error) {
	common, err := buildCommon(r)
	if err != nil {
		return nil, err
	}
	selectors, m, err := buildDataWatchSelectorsAndMatch(r)
	if err != nil {
		return nil, err
	}
	return &DataWatch{
		Common:    common,
		Store:     stringField(r.Fields, "store"),
		Selectors: selectors,
		Match:     m,
		Fetch:     fetch,
	}, nil
}

// trueWatch implements `true`: emits no data, matches non-empty's
// default as "triggered" only because its single empty-value Item
// still counts as one present item (a deliberate null source, used for
// `before`/`after` hooks and as an always-fire generator watch).
type trueWatchFetcher struct{}

func init() {
	register("true", registry.TypeDescriptor{
		Schema: dataWatchSchema(),
	}, func(r *registry.Resolved) (Watch, error) {
		return newDataWatch(r, trueWatchFetcher{})
	})
}

func (trueWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	return [][]byte{{}}, nil
}

// staticWatchFetcher implements `static`: a test fixture emitting a
// configured list verbatim.
type staticWatchFetcher struct {
	Values [][]byte
}

func init() {
	register("static", registry.TypeDescriptor{
		DefaultKey: "values",
		Schema: mergeSchema2(dataWatchSchema(), registry.Schema{
			"values": registry.Any(func() interface{} { return []interface{}{} }),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		raw, _ := r.Fields["values"].([]interface{})
		values := make([][]byte, 0, len(raw))
		for _, v := range raw {
			values = append(values, []byte(fmt.Sprint(v)))
		}
		return newDataWatch(r, staticWatchFetcher{Values: values})
	})
}

func (f staticWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	return f.Values, nil
}

// rangeWatchFetcher implements `range`: a numeric generator from `from`
// (inclusive) to `to` (exclusive) by `step`.
type rangeWatchFetcher struct {
	From, To, Step int
}

func init() {
	register("range", registry.TypeDescriptor{
		Schema: mergeSchema2(dataWatchSchema(), registry.Schema{
			"from": registry.Int(0),
			"to":   registry.Int(0),
			"step": registry.Int(1),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		return newDataWatch(r, rangeWatchFetcher{
			From: r.Fields["from"].(int),
			To:   r.Fields["to"].(int),
			Step: r.Fields["step"].(int),
		})
	})
}

func (f rangeWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	step := f.Step
	if step == 0 {
		step = 1
	}
	var out [][]byte
	if step > 0 {
		for i := f.From; i < f.To; i += step {
			out = append(out, []byte(fmt.Sprint(i)))
		}
	} else {
		for i := f.From; i > f.To; i += step {
			out = append(out, []byte(fmt.Sprint(i)))
		}
	}
	return out, nil
}

// infiniteWatchFetcher implements `infinite`: the byte "1" repeated
// `limit` times (default 1000), produced eagerly as one slice.
type infiniteWatchFetcher struct {
	Limit int
}

func init() {
	register("infinite", registry.TypeDescriptor{
		Schema: mergeSchema2(dataWatchSchema(), registry.Schema{
			"limit": registry.Int(1000),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		return newDataWatch(r, infiniteWatchFetcher{Limit: r.Fields["limit"].(int)})
	})
}

func (f infiniteWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	out := make([][]byte, limit)
	for i := range out {
		out[i] = []byte("1")
	}
	return out, nil
}

// urlWatchFetcher implements `url`: an HTTP fetch reusing a
// per-context cookie-jar-backed client so cookies persist across
// sibling watches.
type urlWatchFetcher struct {
	URL      string
	Method   string
	Headers  map[string]string
	Cookies  map[string]string
	Body     string
	Code     int
	Download string
	Verify   bool
}

func init() {
	register("url", registry.TypeDescriptor{
		DefaultKey: "url",
		Schema: mergeSchema2(dataWatchSchema(), registry.Schema{
			"url":      registry.String(""),
			"method":   registry.String("GET"),
			"headers":  registry.Any(func() interface{} { return map[string]interface{}{} }),
			"cookies":  registry.Any(func() interface{} { return map[string]interface{}{} }),
			"body":     registry.String(""),
			"code":     registry.Int(0),
			"download": registry.String(""),
			"verify":   registry.Bool(true),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		return newDataWatch(r, urlWatchFetcher{
			URL:      stringField(r.Fields, "url"),
			Method:   stringField(r.Fields, "method"),
			Headers:  toStringMap(r.Fields["headers"]),
			Cookies:  toStringMap(r.Fields["cookies"]),
			Body:     stringField(r.Fields, "body"),
			Code:     r.Fields["code"].(int),
			Download: stringField(r.Fields, "download"),
			Verify:   r.Fields["verify"].(bool),
		})
	})
}

func toStringMap(v interface{}) map[string]string {
	m, _ := v.(map[string]interface{})
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = fmt.Sprint(val)
	}
	return out
}

// sessionVariable names the process-scope context variable an HTTP
// client (with its cookie jar) is cached under, so sibling url watches
// in the same run share cookies.
const sessionVariable = "__http_client"

func (f urlWatchFetcher) client(ctx *gctx.Context) (*http.Client, error) {
	if existing, ok := ctx.GetVariable(sessionVariable, nil).(*http.Client); ok {
		return existing, nil
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("watch url: create cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: 30 * time.Second}
	ctx.SetVariable(sessionVariable, client)
	return client, nil
}

func (f urlWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	url, err := ctx.ExpandString(f.URL)
	if err != nil {
		return nil, err
	}
	body, err := ctx.ExpandString(f.Body)
	if err != nil {
		return nil, err
	}

	client, err := f.client(ctx)
	if err != nil {
		return nil, err
	}

	method := f.Method
	if method == "" {
		method = "GET"
	}

	var bodyReader io.Reader
	if body != "" {
		bodyReader = bytes.NewReader([]byte(body))
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("watch url: build request: %w", err)
	}
	for k, v := range f.Headers {
		expanded, err := ctx.ExpandString(v)
		if err != nil {
			return nil, err
		}
		req.Header.Set(k, expanded)
	}

	if len(f.Cookies) > 0 {
		u := req.URL
		jar := client.Jar
		var cookies []*http.Cookie
		for name, value := range f.Cookies {
			expanded, err := ctx.ExpandString(value)
			if err != nil {
				return nil, err
			}
			cookies = append(cookies, &http.Cookie{Name: name, Value: expanded})
		}
		jar.SetCookies(u, cookies)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch url: request %q: %w", url, err)
	}
	defer resp.Body.Close()

	if f.Code != 0 && resp.StatusCode != f.Code {
		return nil, fmt.Errorf("watch url: %q returned status %d, expected %d", url, resp.StatusCode, f.Code)
	}

	if f.Download != "" {
		path, err := ctx.ExpandString(f.Download)
		if err != nil {
			return nil, err
		}
		abs, err := resolveWithinCWD(path)
		if err != nil {
			return nil, err
		}
		out, err := os.Create(abs)
		if err != nil {
			return nil, fmt.Errorf("watch url: create download target %q: %w", abs, err)
		}
		defer out.Close()
		if _, err := io.Copy(out, resp.Body); err != nil {
			return nil, fmt.Errorf("watch url: download %q: %w", url, err)
		}
		return [][]byte{[]byte(abs)}, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("watch url: read body of %q: %w", url, err)
	}
	return [][]byte{data}, nil
}

// resolveWithinCWD resolves path relative to the process's working
// directory and rejects any result that escapes it, per SPEC_FULL.md
// §4.7's download-path containment requirement.
func resolveWithinCWD(path string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("watch url: getwd: %w", err)
	}
	abs := filepath.Join(cwd, path)
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("watch url: download path %q escapes working directory", path)
	}
	return abs, nil
}

// cmdWatchFetcher implements `cmd`: a shell exec launched in its own
// process group so a timeout can kill the whole group, not just the
// shell.
type cmdWatchFetcher struct {
	Shell      string
	Cmd        string
	Sudo       bool
	Env        map[string]string
	Cwd        string
	Timeout    int
	ReturnCode int
	Output     string
}

func init() {
	register("cmd", registry.TypeDescriptor{
		DefaultKey: "cmd",
		Schema: mergeSchema2(dataWatchSchema(), registry.Schema{
			"shell":       registry.String("/bin/sh"),
			"cmd":         registry.String(""),
			"sudo":        registry.Bool(false),
			"env":         registry.Any(func() interface{} { return map[string]interface{}{} }),
			"cwd":         registry.String(""),
			"timeout":     registry.Int(30),
			"return_code": registry.Int(0),
			"output":      registry.String("stdout"),
		}),
	}, func(r *registry.Resolved) (Watch, error) {
		return newDataWatch(r, cmdWatchFetcher{
			Shell:      stringField(r.Fields, "shell"),
			Cmd:        stringField(r.Fields, "cmd"),
			Sudo:       r.Fields["sudo"].(bool),
			Env:        toStringMap(r.Fields["env"]),
			Cwd:        stringField(r.Fields, "cwd"),
			Timeout:    r.Fields["timeout"].(int),
			ReturnCode: r.Fields["return_code"].(int),
			Output:     stringField(r.Fields, "output"),
		})
	})
}

func (f cmdWatchFetcher) fetchData(ctx *gctx.Context, cc *cache.Cache) ([][]byte, error) {
	cmdText, err := ctx.ExpandString(f.Cmd)
	if err != nil {
		return nil, err
	}

	shell := f.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := time.Duration(f.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	runCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name := shell
	args := []string{}
	if f.Sudo {
		args = append([]string{shell}, args...)
		name = "sudo"
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdin = bytes.NewReader([]byte(cmdText))
	if f.Cwd != "" {
		cwd, err := ctx.ExpandString(f.Cwd)
		if err != nil {
			return nil, err
		}
		cmd.Dir = cwd
	}
	if len(f.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range f.Env {
			expanded, err := ctx.ExpandString(v)
			if err != nil {
				return nil, err
			}
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, expanded))
		}
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd, f.Sudo)
		return nil, fmt.Errorf("watch cmd: %q timed out after %s", cmdText, timeout)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("watch cmd: run %q: %w", cmdText, runErr)
		}
	}
	if exitCode != f.ReturnCode {
		return nil, fmt.Errorf("watch cmd: %q exited %d, expected %d: %s", cmdText, exitCode, f.ReturnCode, stderr.String())
	}

	switch f.Output {
	case "stderr":
		return [][]byte{stderr.Bytes()}, nil
	case "both":
		return [][]byte{append(append([]byte{}, stdout.Bytes()...), stderr.Bytes()...)}, nil
	default:
		return [][]byte{stdout.Bytes()}, nil
	}
}

// killProcessGroup terminates the process group the command was
// launched into, so a timeout reaps children the shell spawned, not
// just the shell itself. Under sudo, invokes an external kill helper
// with matching privilege rather than signaling directly.
func killProcessGroup(cmd *exec.Cmd, sudo bool) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	if sudo {
		_ = exec.Command("sudo", "kill", fmt.Sprintf("-%d", pgid)).Run()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
}

// mergeSchema2 layers extra fields onto a base schema already merged
// with commonSchema() (dataWatchSchema's result), avoiding
// double-applying commonSchema.
func mergeSchema2(base, extra registry.Schema) registry.Schema {
	out := registry.Schema{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
