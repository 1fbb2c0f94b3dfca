package mux

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// RepoRef identifies a hosted repository.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

var (
	sshRepoURL   = regexp.MustCompile(`^[\w.-]+@([\w.-]+):([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)
	httpsRepoURL = regexp.MustCompile(`^https?://([\w.-]+)/([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)
)

// ParseRepoURL accepts "git@host:owner/repo(.git)" and
// "https://host/owner/repo(.git)".
func ParseRepoURL(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	for _, re := range []*regexp.Regexp{sshRepoURL, httpsRepoURL} {
		if m := re.FindStringSubmatch(s); m != nil {
			return RepoRef{Host: strings.ToLower(m[1]), Owner: m[2], Name: m[3]}, nil
		}
	}
	return RepoRef{}, fmt.Errorf("%w: %q", ErrUnsupportedRepo, raw)
}

// FileRef names one file in a repository at a ref.
type FileRef struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
	Token string
}

// FetchFunc retrieves the text of a remote file. A non-200 answer is reported
// through status with a nil error; err is reserved for transport failures and
// payloads that are not a file.
type FetchFunc func(ctx context.Context, ref FileRef) (content string, status int, err error)

// GitHubClient reads files through the GitHub contents API.
type GitHubClient struct {
	rc       *resty.Client
	progress io.Writer // nil disables the progress bar
}

// NewGitHubClient builds a client for baseURL (https://api.github.com in
// production). Transient failures are retried by go-retryablehttp; once the
// retries run out the last response is handed back so its status reaches the
// caller.
func NewGitHubClient(baseURL string) *GitHubClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	rc := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "mux/"+version)

	var progress io.Writer
	if term.IsTerminal(int(os.Stderr.Fd())) {
		progress = os.Stderr
	}
	return &GitHubClient{rc: rc, progress: progress}
}

type contentsPayload struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// contentsPath builds /repos/{owner}/{repo}/contents/{path} escaping each
// segment but keeping the slashes of the file path.
func contentsPath(ref FileRef) string {
	segs := strings.Split(strings.Trim(ref.Path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s",
		url.PathEscape(ref.Owner), url.PathEscape(ref.Repo), strings.Join(segs, "/"))
}

// Fetch implements FetchFunc.
func (g *GitHubClient) Fetch(ctx context.Context, ref FileRef) (string, int, error) {
	if ref.Ref == "" {
		ref.Ref = defaultRef
	}
	req := g.rc.R().
		SetContext(ctx).
		SetQueryParam("ref", ref.Ref).
		SetDoNotParseResponse(true)
	if ref.Token != "" {
		req.SetHeader("Authorization", "token "+ref.Token)
	}

	resp, err := req.Get(contentsPath(ref))
	if err != nil {
		return "", 0, fmt.Errorf("failed to fetch %s/%s/%s: %w", ref.Owner, ref.Repo, ref.Path, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		debugf("fetch %s: %s", contentsPath(ref), resp.Status())
		return "", resp.StatusCode(), nil
	}

	var buf bytes.Buffer
	dst := io.Writer(&buf)
	if g.progress != nil {
		bar := progressbar.NewOptions64(resp.RawResponse.ContentLength,
			progressbar.OptionSetWriter(g.progress),
			progressbar.OptionSetDescription("fetching "+ref.Path),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		dst = io.MultiWriter(&buf, bar)
	}
	if _, err := io.Copy(dst, body); err != nil {
		return "", resp.StatusCode(), fmt.Errorf("failed to read response: %w", err)
	}

	var payload contentsPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		return "", resp.StatusCode(), fmt.Errorf("unexpected contents response: %w", err)
	}
	if payload.Type != "file" {
		return "", resp.StatusCode(), fmt.Errorf("%w: %s is a %s", ErrNotAFile, ref.Path, payload.Type)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return "", resp.StatusCode(), fmt.Errorf("failed to decode %s: %w", ref.Path, err)
	}
	return string(decoded), resp.StatusCode(), nil
}
