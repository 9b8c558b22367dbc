package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Curl sends requests by running the curl binary as a subprocess.
type Curl struct {
	// Path is the curl executable; "curl" from PATH when empty.
	Path    string
	Timeout time.Duration
	log     *logrus.Entry
}

func NewCurl(path string, timeout time.Duration, log *logrus.Entry) *Curl {
	if path == "" {
		path = "curl"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Curl{Path: path, Timeout: timeout, log: log}
}

// Args returns the argument vector passed to curl for req.
func (c *Curl) Args(req Request) ([]string, error) {
	args := []string{"-sS", "-X", req.method()}
	if req.Insecure {
		args = append(args, "-k")
	}
	if c.Timeout > 0 {
		args = append(args, "--max-time", strconv.FormatFloat(c.Timeout.Seconds(), 'f', -1, 64))
	}
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		args = append(args, "-H", "Content-Type: application/json", "-d", string(data))
	}
	return append(args, req.URL), nil
}

// CommandLine renders req as a single shell command. JSON bodies are quoted
// with EscapeJSONArg; when redact is set the body and query string are
// replaced so the line is safe to log.
func (c *Curl) CommandLine(req Request, redact bool) (string, error) {
	var b strings.Builder
	b.WriteString(c.Path)
	b.WriteString(" -sS -X ")
	b.WriteString(req.method())
	if req.Insecure {
		b.WriteString(" -k")
	}
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return "", fmt.Errorf("encode request body: %w", err)
		}
		body := EscapeJSONArg(string(data))
		if redact {
			body = "<redacted>"
		}
		b.WriteString(` -H "Content-Type: application/json" -d "`)
		b.WriteString(body)
		b.WriteString(`"`)
	}
	target := req.URL
	if redact {
		target = redactQuery(target)
	}
	b.WriteString(` "`)
	b.WriteString(target)
	b.WriteString(`"`)
	return b.String(), nil
}

// EscapeJSONArg escapes the double quotes of a serialized JSON payload so
// it survives as one double-quoted command-line argument.
func EscapeJSONArg(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func (c *Curl) Send(ctx context.Context, req Request) ([]byte, error) {
	args, err := c.Args(req)
	if err != nil {
		return nil, err
	}
	if line, err := c.CommandLine(req, true); err == nil {
		c.log.WithField("insecure", req.Insecure).Debugf("exec %s", line)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, NetworkError{Msg: fmt.Sprintf("curl exited with status %d", exitErr.ExitCode()), Detail: detail, Err: err}
		}
		return nil, NetworkError{Msg: "run curl", Detail: detail, Err: err}
	}

	if stdout.Len() == 0 {
		return nil, NetworkError{Msg: "curl produced no output", Detail: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// redactQuery drops the query string, which may carry the session token.
func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	u.RawQuery = "<redacted>"
	return u.String()
}
