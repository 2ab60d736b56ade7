package session

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestTokenStoresRoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) TokenStore{
		"memory": func(t *testing.T) TokenStore { return NewMemoryTokenStore() },
		"file": func(t *testing.T) TokenStore {
			return NewFileTokenStore(filepath.Join(t.TempDir(), "nested", "session.json"))
		},
		"cookie": func(t *testing.T) TokenStore {
			return NewCookieTokenStore(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{})
		},
	}
	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			store := build(t)
			if store.HasAccess() {
				t.Fatal("new store reports an access token")
			}

			store.SetPair(TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})
			if got, ok := store.Access(); !ok || got != "access-1" {
				t.Fatalf("Access() = %q, %v", got, ok)
			}
			if got, ok := store.Refresh(); !ok || got != "refresh-1" {
				t.Fatalf("Refresh() = %q, %v", got, ok)
			}

			store.SetAccess("access-2")
			if got, _ := store.Access(); got != "access-2" {
				t.Fatalf("Access() after SetAccess = %q", got)
			}

			store.Clear()
			if store.HasAccess() {
				t.Fatal("HasAccess() after Clear")
			}
			if _, ok := store.Refresh(); ok {
				t.Fatal("refresh token survived Clear")
			}
		})
	}
}

func TestNilStoresAreNoOps(t *testing.T) {
	var memory *MemoryTokenStore
	var file *FileTokenStore
	var cookie *CookieTokenStore
	for _, store := range []TokenStore{memory, file, cookie} {
		store.SetPair(TokenPair{AccessToken: "a", RefreshToken: "r"})
		store.SetAccess("a")
		store.Clear()
		if store.HasAccess() {
			t.Fatalf("%T: nil store reports a token", store)
		}
	}
}

func TestFileTokenStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	NewFileTokenStore(path).SetPair(TokenPair{AccessToken: "a", RefreshToken: "r"})

	reopened := NewFileTokenStore(path)
	if got, _ := reopened.Access(); got != "a" {
		t.Fatalf("want %q, got %q", "a", got)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Fatalf("file mode = %o, want 600", perm)
		}
	}

	reopened.Clear()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("token file still present after Clear: %v", err)
	}
}

func TestFileTokenStoreIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewFileTokenStore(path)
	if store.HasAccess() {
		t.Fatal("corrupt file produced a token")
	}
}

func TestCookieTokenStoreAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	store := NewCookieTokenStore(rec, httptest.NewRequest(http.MethodGet, "/", nil), CookieOptions{Secure: true})
	store.SetPair(TokenPair{AccessToken: "a", RefreshToken: "r"})

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies, want 2", len(cookies))
	}
	for _, c := range cookies {
		if c.Path != "/" || !c.Secure || !c.HttpOnly || c.SameSite != http.SameSiteStrictMode {
			t.Fatalf("cookie %s has unexpected attributes: %+v", c.Name, c)
		}
		if c.MaxAge != 7*24*60*60 {
			t.Fatalf("cookie %s MaxAge = %d", c.Name, c.MaxAge)
		}
	}
}

func TestCookieTokenStoreReadsRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "a"})
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "r"})

	store := NewCookieTokenStore(nil, req, CookieOptions{})
	if got, _ := store.Access(); got != "a" {
		t.Fatalf("want %q, got %q", "a", got)
	}
	if got, _ := store.Refresh(); got != "r" {
		t.Fatalf("want %q, got %q", "r", got)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Fatalf("got %s", got)
	}
}
