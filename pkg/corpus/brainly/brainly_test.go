package brainly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jawabbot/pkg/config"
	"jawabbot/pkg/corpus"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, cfg config.CorpusConfig) *Client {
	t.Helper()

	cfg.BaseURL = url
	client, err := New(cfg, nil)
	require.NoError(t, err)
	client.backoffBase = time.Millisecond
	return client
}

func decodeRequest(t *testing.T, r *http.Request) searchRequest {
	t.Helper()

	var req searchRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestNewRejectsNonHTTPBaseURL(t *testing.T) {
	_, err := New(config.CorpusConfig{BaseURL: "ftp://brainly"}, nil)
	require.Error(t, err)
}

func TestSearchParsesRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("User-Agent"))

		req := decodeRequest(t, r)
		require.Equal(t, "SearchQuery", req.OperationName)
		require.Equal(t, "apa itu air", req.Variables["query"])
		require.EqualValues(t, 5, req.Variables["first"])

		fmt.Fprint(w, `{"data":{"questionSearch":{
		  "pageInfo":{"hasNextPage":false,"endCursor":""},
		  "edges":[
		    {"node":{
		      "content":"<p>Apa itu <b>air</b>?</p>",
		      "attachments":[{"url":"https://img/q.png"},{"url":" "}],
		      "answers":{"nodes":[
		        {"content":"Air adalah H<sub>2</sub>O<br />rumus &amp; sifat","attachments":[{"url":"https://img/a.png"}]}
		      ]}
		    }},
		    {"node":{"content":"Tanpa jawaban","attachments":[],"answers":{"nodes":[]}}}
		  ]}}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{})
	result, err := client.Search(context.Background(), "  apa itu air ", 5)
	require.NoError(t, err)
	require.Len(t, result, 2)

	first := result[0]
	require.Equal(t, "Apa itu air?", first.Content)
	require.Equal(t, []corpus.MediaRef{{URL: "https://img/q.png"}}, first.Attachments)
	require.Len(t, first.Answers, 1)
	require.Equal(t, "Air adalah H2O\nrumus & sifat", first.Answers[0].Content)
	require.Equal(t, []corpus.MediaRef{{URL: "https://img/a.png"}}, first.Answers[0].Attachments)

	require.Empty(t, result[1].Answers)
}

func TestSearchFollowsPages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		switch calls.Add(1) {
		case 1:
			require.Nil(t, req.Variables["after"])
			require.EqualValues(t, 2, req.Variables["first"])
			fmt.Fprint(w, `{"data":{"questionSearch":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},
			  "edges":[{"node":{"content":"q1","answers":{"nodes":[{"content":"a1"}]}}},
			           {"node":{"content":"q2","answers":{"nodes":[{"content":"a2"}]}}}]}}}`)
		default:
			require.Equal(t, "c1", req.Variables["after"])
			require.EqualValues(t, 1, req.Variables["first"])
			fmt.Fprint(w, `{"data":{"questionSearch":{"pageInfo":{"hasNextPage":true,"endCursor":"c2"},
			  "edges":[{"node":{"content":"q3","answers":{"nodes":[{"content":"a3"}]}}}]}}}`)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{PageSize: 2})
	result, err := client.Search(context.Background(), "soal", 3)
	require.NoError(t, err)
	require.Len(t, result, 3)
	require.Equal(t, "q3", result[2].Content)
	require.EqualValues(t, 2, calls.Load())
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":{"questionSearch":{"pageInfo":{},"edges":[{"node":{"content":"q","answers":{"nodes":[{"content":"a"}]}}}]}}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{MaxRetries: 2})
	result, err := client.Search(context.Background(), "soal", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.EqualValues(t, 2, calls.Load())
}

func TestSearchGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{MaxRetries: 1})
	_, err := client.Search(context.Background(), "soal", 10)

	var lookupErr *corpus.LookupError
	require.True(t, errors.As(err, &lookupErr))
	require.Equal(t, "soal", lookupErr.Query)

	var statusErr *retryableStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.statusCode)
	require.EqualValues(t, 2, calls.Load())
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{MaxRetries: 3})
	_, err := client.Search(context.Background(), "soal", 10)
	require.ErrorContains(t, err, "HTTP 400")
	require.EqualValues(t, 1, calls.Load())
}

func TestSearchReportsGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"query too short"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{})
	_, err := client.Search(context.Background(), "a", 10)
	require.ErrorContains(t, err, "query too short")
}

func TestSearchEmptyQuery(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", config.CorpusConfig{})

	_, err := client.Search(context.Background(), "   ", 10)
	var lookupErr *corpus.LookupError
	require.True(t, errors.As(err, &lookupErr))
}

func TestSearchHonorsCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, config.CorpusConfig{MaxRetries: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, "soal", 10)
	require.ErrorIs(t, err, context.Canceled)
}
