//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/dataset"
	"github.com/xkilldash9x/searchcheck/internal/failures"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/suite"
)

// searchPage renders results client side after Enter, like the real engine.
const searchPage = `<!doctype html>
<html><body>
<textarea id="chat-textarea"></textarea>
<div id="content_left" style="display:none"></div>
<script>
const input = document.getElementById('chat-textarea');
input.addEventListener('keydown', (e) => {
  if (e.key !== 'Enter') return;
  e.preventDefault();
  const box = document.getElementById('content_left');
  const n = input.value === 'few' ? 2 : 10;
  box.innerHTML = '';
  for (let i = 1; i <= n; i++) {
    box.insertAdjacentHTML('beforeend', '<h3><a href="/result/' + i + '">' + input.value + ' ' + i + '</a></h3>');
  }
  box.style.display = 'block';
});
</script>
</body></html>`

var (
	srv     *httptest.Server
	cfg     *config.Config
	session *fixture.Session
)

// TestMain holds the session fixture: one browser for every test in the
// package, torn down after the last one.
func TestMain(m *testing.M) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if strings.HasPrefix(r.URL.Path, "/result/") {
			fmt.Fprintf(w, "<html><body><h1>%s</h1></body></html>", r.URL.Path)
			return
		}
		_, _ = w.Write([]byte(searchPage))
	})
	srv = httptest.NewServer(mux)

	cfg = config.NewDefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 15
	cfg.Actions.SearchDelay = 10 * time.Millisecond
	cfg.Actions.KeystrokeDelay = 10 * time.Millisecond
	dir, err := os.MkdirTemp("", "searchcheck-e2e")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Paths.Screenshots = dir

	logger := zap.NewNop()
	session = fixture.NewSession("test", fixture.BrowserLauncher(browser.OptionsFromConfig(cfg), logger), logger,
		fixture.WithReloadTimeout(cfg.WaitTimeout()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	code := 1
	if err := session.Open(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "browser session:", err)
	} else {
		code = m.Run()
	}
	cancel()

	_ = session.Close(context.Background())
	srv.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func runCase(t *testing.T, c dataset.Case) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	deps := suite.DepsFromConfig(cfg, zap.NewNop())
	return session.RunCase(ctx, suite.CaseName(c), suite.SearchNthResult(deps, c))
}

func TestSearchNthResult(t *testing.T) {
	require.NoError(t, runCase(t, dataset.Case{Keyword: "playwright", Index: 3}))

	page, err := session.Page()
	require.NoError(t, err)
	var path string
	require.NoError(t, page.Evaluate(context.Background(), `location.pathname`, &path))
	assert.Equal(t, "/result/3", path)
}

func TestSearchNthResultNotEnoughResults(t *testing.T) {
	err := runCase(t, dataset.Case{Keyword: "few", Index: 5})
	require.Error(t, err)
	assert.Equal(t, failures.KindPrecondition, failures.KindOf(err))
}

func TestSessionSurvivesFailedCase(t *testing.T) {
	require.Error(t, runCase(t, dataset.Case{Keyword: "few", Index: 9}))
	require.NoError(t, runCase(t, dataset.Case{Keyword: "golang", Index: 1}))
	assert.Equal(t, fixture.StateActive, session.State())
}
