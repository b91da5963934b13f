package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/luminbot/luminbot-discord/datasource"
	"github.com/luminbot/luminbot-discord/streams"
)

type memStore map[string]json.RawMessage

func (m memStore) GetData(_ context.Context, key string) (json.RawMessage, error) {
	doc, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrNotFound, key)
	}
	return doc, nil
}

func (m memStore) PutData(_ context.Context, key string, doc json.RawMessage) error {
	m[key] = doc
	return nil
}

func TestPutThenGet(t *testing.T) {
	store := memStore{}
	ctx := context.Background()
	in := `{"streams":[{"id":"1","user":{"name":"alice"},"viewer_count":100},{"id":"2","user":{"name":"bob"}}]}`

	snap, err := putDocument(ctx, store, "streams", strings.NewReader(in))
	if err != nil {
		t.Fatalf("putDocument() error = %v", err)
	}
	if snap.LiveChannelCount() != 2 || snap.TotalViewerCount() != 100 {
		t.Fatalf("snapshot = %+v", snap)
	}

	var out bytes.Buffer
	if err := getDocument(ctx, store, "streams", &out); err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	if !strings.Contains(out.String(), "# 2 streams | 100 viewers") {
		t.Fatalf("output missing status line: %q", out.String())
	}
	if !strings.Contains(out.String(), `"viewer_count":0`) {
		t.Fatalf("missing viewer_count not normalized to 0: %q", out.String())
	}
}

func TestPutRejectsMalformed(t *testing.T) {
	store := memStore{}
	for _, in := range []string{`{}`, `{"streams":null}`, `not json`} {
		if _, err := putDocument(context.Background(), store, "streams", strings.NewReader(in)); err == nil {
			t.Errorf("putDocument(%q) expected error", in)
		}
	}
	if len(store) != 0 {
		t.Fatalf("malformed input was stored: %v", store)
	}

	_, err := putDocument(context.Background(), store, "streams", strings.NewReader(`{}`))
	if !errors.Is(err, streams.ErrMalformedDocument) {
		t.Fatalf("error = %v, want ErrMalformedDocument", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	err := getDocument(context.Background(), memStore{}, "streams", &bytes.Buffer{})
	if !errors.Is(err, datasource.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCommands(t *testing.T) {
	store := memStore{}
	orig := openStore
	openStore = func(context.Context) (documentStore, func(), error) { return store, func() {}, nil }
	t.Cleanup(func() { openStore = orig })

	put := newRootCmd()
	put.SetIn(strings.NewReader(`{"streams":[{"id":"7","user":{"name":"carol"},"viewer_count":42}]}`))
	put.SetArgs([]string{"put", "--key", "lumin"})
	if err := put.Execute(); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := store["lumin"]; !ok {
		t.Fatalf("document not stored under custom key: %v", store)
	}

	var out bytes.Buffer
	get := newRootCmd()
	get.SetOut(&out)
	get.SetArgs([]string{"get", "--key", "lumin"})
	if err := get.Execute(); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out.String(), "# 1 streams | 42 viewers") {
		t.Fatalf("get output = %q", out.String())
	}

	missing := newRootCmd()
	missing.SetArgs([]string{"get"})
	if err := missing.Execute(); !errors.Is(err, datasource.ErrNotFound) {
		t.Fatalf("get default key error = %v, want ErrNotFound", err)
	}
}
