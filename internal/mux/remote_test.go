package mux

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in      string
		want    RepoRef
		wantErr bool
	}{
		{in: "git@github.com:owner/repo.git", want: RepoRef{"github.com", "owner", "repo"}},
		{in: "git@github.com:owner/repo", want: RepoRef{"github.com", "owner", "repo"}},
		{in: "https://github.com/owner/repo.git", want: RepoRef{"github.com", "owner", "repo"}},
		{in: "https://github.com/owner/repo", want: RepoRef{"github.com", "owner", "repo"}},
		{in: "https://GitHub.com/owner/my.repo/", want: RepoRef{"github.com", "owner", "my.repo"}},
		{in: "git@gitlab.com:group/tool.git", want: RepoRef{"gitlab.com", "group", "tool"}},
		{in: "github.com/owner/repo", wantErr: true},
		{in: "https://github.com/owner", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepoURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedRepo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestGitHub(t *testing.T, h http.HandlerFunc) *GitHubClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gh := NewGitHubClient(srv.URL)
	gh.progress = nil
	return gh
}

func TestGitHubFetchFile(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/repo/contents/scripts/install.go", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		enc := base64.StdEncoding.EncodeToString([]byte(src))
		// the API wraps content every 60 characters
		wrapped := enc[:10] + "\n" + enc[10:]
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "file", "encoding": "base64", "content": wrapped})
	})

	content, status, err := gh.Fetch(context.Background(), FileRef{
		Owner: "owner", Repo: "repo", Path: "scripts/install.go", Token: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, src, content)
}

func TestGitHubFetchWithoutToken(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "v2", r.URL.Query().Get("ref"))
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "file", "content": base64.StdEncoding.EncodeToString([]byte("x"))})
	})

	content, _, err := gh.Fetch(context.Background(), FileRef{Owner: "o", Repo: "r", Path: "f", Ref: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "x", content)
}

func TestGitHubFetchNotFound(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	content, status, err := gh.Fetch(context.Background(), FileRef{Owner: "o", Repo: "r", Path: "missing.go"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, content)
}

func TestGitHubFetchServerError(t *testing.T) {
	var calls atomic.Int32
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	content, status, err := gh.Fetch(context.Background(), FileRef{Owner: "a", Repo: "b", Path: "x.go"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Empty(t, content)
	assert.Equal(t, int32(4), calls.Load(), "retried before giving the status back")
}

func TestGitHubFetchDirectory(t *testing.T) {
	gh := newTestGitHub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "dir"})
	})

	_, status, err := gh.Fetch(context.Background(), FileRef{Owner: "o", Repo: "r", Path: "scripts"})
	assert.ErrorIs(t, err, ErrNotAFile)
	assert.Equal(t, http.StatusOK, status)
}

func TestContentsPathEscaping(t *testing.T) {
	got := contentsPath(FileRef{Owner: "o", Repo: "r", Path: "/dir/my file.go"})
	assert.Equal(t, "/repos/o/r/contents/dir/my%20file.go", got)
}
