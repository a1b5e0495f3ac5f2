package telegram

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	method string
	form   map[string]string
}

// fakeBotAPI answers Bot API requests and records them
type fakeBotAPI struct {
	mu     sync.Mutex
	calls  []apiCall
	errors map[string]string
	nextID int
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	form := map[string]string{}
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			form[k] = v[0]
		}
	} else if err := r.ParseForm(); err == nil {
		for k, v := range r.Form {
			form[k] = v[0]
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, form: form})
	f.nextID++
	id := f.nextID
	failure, failing := f.errors[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		var status int
		fmt.Sscanf(failure, "%d", &status)
		w.WriteHeader(status)
		fmt.Fprint(w, failure[4:])
		return
	}

	switch method {
	case "copyMessage":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d}}`, id)
	case "setMyCommands":
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":1,"type":"channel"}}}`, id)
	}
}

// fail makes every call of method answer with the given status and JSON body
func (f *fakeBotAPI) fail(method string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		f.errors = map[string]string{}
	}
	f.errors[method] = fmt.Sprintf("%03d %s", status, body)
}

func (f *fakeBotAPI) recorded() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestBot(t *testing.T) (*bot.Bot, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := bot.New("test-token", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b, api
}
