// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGitCloner_RemoteMissing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	var progress bytes.Buffer
	g := &GitCloner{Progress: &progress}
	if err := g.Clone(context.Background(), srv.URL+"/nope.git", t.TempDir()); err == nil {
		t.Fatal("expected clone of a missing repository to fail")
	}
}
