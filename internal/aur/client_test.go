// SPDX-License-Identifier: MPL-2.0

package aur

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/archpkg/archpkg/internal/retry"
)

const yayInfo = `{"version":5,"type":"multiinfo","resultcount":1,"results":[
 {"ID":1,"Name":"yay","PackageBaseID":2,"PackageBase":"yay","Version":"12.4.2-1",
  "Description":"Yet another yogurt. Pacman wrapper and AUR helper written in go.",
  "URL":"https://github.com/Jguer/yay","NumVotes":2500,"Popularity":30.5,
  "OutOfDate":null,"Maintainer":"jguer"}]}`

const emptyInfo = `{"version":5,"type":"multiinfo","resultcount":0,"results":[]}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL+"/rpc/"), WithCloneURL("https://aur.example.org/"))
}

func TestSearch_ParsesResultsInOrder(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("v") != "5" || q.Get("type") != "search" || q.Get("arg") != "yogurt" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header not set")
		}
		fmt.Fprint(w, `{"version":5,"type":"search","resultcount":2,"results":[
			{"Name":"yay","PackageBase":"yay","Description":"first","Version":"1-1"},
			{"Name":"yay-bin","PackageBase":"yay-bin","Description":"second","Version":"1-1","OutOfDate":1700000000}]}`)
	})

	got, err := client.Search(context.Background(), "yogurt")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Name != "yay" || got[1].Name != "yay-bin" {
		t.Errorf("results out of order: %q, %q", got[0].Name, got[1].Name)
	}
	if got[0].Description != "first" {
		t.Errorf("Description = %q, want first", got[0].Description)
	}
	if got[0].OutOfDate != nil {
		t.Error("yay should not be flagged out of date")
	}
	if got[1].OutOfDate == nil || got[1].OutOfDate.Unix() != 1700000000 {
		t.Errorf("yay-bin OutOfDate = %v, want 1700000000", got[1].OutOfDate)
	}
}

func TestSearch_EmptyIsNotFound(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"version":5,"type":"search","resultcount":0,"results":[]}`)
	})

	_, err := client.Search(context.Background(), "zzzz-nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Search() error = %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["arg[]"]; len(got) != 1 {
			t.Errorf("arg[] = %v, want one name", got)
		}
		if r.URL.Query().Get("arg[]") == "yay" {
			fmt.Fprint(w, yayInfo)
			return
		}
		fmt.Fprint(w, emptyInfo)
	})

	tests := []struct {
		name string
		want bool
	}{
		{"yay", true},
		{"ghost-package", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := client.Exists(context.Background(), tt.name)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestExists_Idempotent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, yayInfo)
	})

	first, err1 := client.Exists(context.Background(), "yay")
	second, err2 := client.Exists(context.Background(), "yay")
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v, %v", err1, err2)
	}
	if first != second {
		t.Errorf("Exists changed between calls: %v then %v", first, second)
	}
	if calls.Load() != 2 {
		t.Errorf("expected both calls to reach the server, got %d", calls.Load())
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("arg[]") == "yay" {
			fmt.Fprint(w, yayInfo)
			return
		}
		fmt.Fprint(w, emptyInfo)
	})

	pkg, err := client.Lookup(context.Background(), "yay")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if pkg.PackageBase != "yay" || pkg.Version != "12.4.2-1" || pkg.Maintainer != "jguer" {
		t.Errorf("unexpected package: %+v", pkg)
	}

	if _, err := client.Lookup(context.Background(), "ghost-package"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestLookup_AgreesWithExists(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("arg[]") {
		case "yay", "YAY":
			fmt.Fprint(w, yayInfo)
		default:
			fmt.Fprint(w, emptyInfo)
		}
	})

	for _, name := range []string{"yay", "YAY", "ghost-package"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			exists, err := client.Exists(context.Background(), name)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			pkg, err := client.Lookup(context.Background(), name)
			if exists {
				if err != nil || pkg.PackageBase != "yay" {
					t.Errorf("Lookup(%q) = %+v, %v; Exists reported true", name, pkg, err)
				}
				return
			}
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Lookup(%q) error = %v; Exists reported false", name, err)
			}
		})
	}
}

func TestInfo_MultipleNames(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["arg[]"]; len(got) != 2 {
			t.Errorf("arg[] = %v, want two names", got)
		}
		fmt.Fprint(w, yayInfo)
	})

	pkgs, err := client.Info(context.Background(), "yay", "paru")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if len(pkgs) != 1 {
		t.Errorf("got %d packages, want 1 (unknown names are absent)", len(pkgs))
	}

	if pkgs, err := client.Info(context.Background()); err != nil || pkgs != nil {
		t.Errorf("Info() with no names = %v, %v; want nil, nil", pkgs, err)
	}
}

func TestQuery_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantTransport bool
		wantAPI       string
	}{
		{"server error", http.StatusBadGateway, "bad gateway", true, ""},
		{"rate limited", http.StatusTooManyRequests, "", true, ""},
		{"truncated json", http.StatusOK, `{"version":5,"results":[`, true, ""},
		{"rpc error body", http.StatusOK, `{"version":5,"type":"error","resultcount":0,"results":[],"error":"Too many package results."}`, false, "Too many package results."},
		{"client error", http.StatusBadRequest, `{"type":"error","error":"Incorrect request type specified."}`, false, "Incorrect request type specified."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := client.Exists(context.Background(), "yay")
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, ErrNotFound) {
				t.Fatal("failures must not be reported as not found")
			}

			var te *TransportError
			if got := errors.As(err, &te); got != tt.wantTransport {
				t.Errorf("TransportError = %v, want %v (err: %v)", got, tt.wantTransport, err)
			}
			if retry.IsTransient(err) != tt.wantTransport {
				t.Errorf("IsTransient = %v, want %v", !tt.wantTransport, tt.wantTransport)
			}

			var ae *APIError
			if tt.wantAPI != "" {
				if !errors.As(err, &ae) || ae.Message != tt.wantAPI {
					t.Errorf("APIError = %v, want message %q", err, tt.wantAPI)
				}
			}
		})
	}
}

func TestQuery_ConnectionRefusedIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewClient(WithBaseURL(addr + "/rpc/"))
	_, err := client.Exists(context.Background(), "yay")

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !retry.IsTransient(err) {
		t.Error("connection failures should be transient")
	}
}

func TestQuery_TimeoutIsTransient(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	client.timeout = 20 * time.Millisecond
	defer close(release)

	_, err := client.Exists(context.Background(), "yay")
	if !retry.IsTransient(err) {
		t.Fatalf("timeout error %v should be transient", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %q, want a timeout message", err.Error())
	}
}

func TestQuery_CallerCancellationIsNotTransient(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, yayInfo)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Exists(ctx, "yay")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if retry.IsTransient(err) {
		t.Error("cancellation must not be retried")
	}
}

func TestRecipeURL(t *testing.T) {
	t.Parallel()

	c := NewClient(WithCloneURL("https://aur.example.org/"))
	if got := c.RecipeURL("python-foo"); got != "https://aur.example.org/python-foo.git" {
		t.Errorf("RecipeURL() = %q", got)
	}
	if got := NewClient().RecipeURL("yay"); got != "https://aur.archlinux.org/yay.git" {
		t.Errorf("default RecipeURL() = %q", got)
	}
}
