package brainly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jawabbot/pkg/config"
	"jawabbot/pkg/corpus"
)

const (
	maxResponseBytes = 4 << 20
	defaultTimeout   = 15 * time.Second
)

const searchQuery = `query SearchQuery($query: String!, $first: Int!, $after: ID) {
  questionSearch(query: $query, first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        content
        attachments { url }
        answers { nodes { content attachments { url } } }
      }
    }
  }
}`

// Client searches Brainly through its public GraphQL endpoint.
type Client struct {
	endpoint    string
	userAgent   string
	pageSize    int
	maxRetries  int
	backoffBase time.Duration
	http        *http.Client
	log         *slog.Logger
}

// New validates corpus configuration and constructs a client.
func New(cfg config.CorpusConfig, log *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.BaseURL)
	if endpoint == "" {
		endpoint = config.DefaultBrainlyBaseURL
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("corpus.base_url must be an http(s) URL: %q", endpoint)
	}

	if log == nil {
		log = slog.Default()
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	return &Client{
		endpoint:    endpoint,
		userAgent:   userAgent,
		pageSize:    cfg.PageSize,
		maxRetries:  max(cfg.MaxRetries, 0),
		backoffBase: time.Second,
		http:        newHTTPClient(timeout),
		log:         log.With("component", "corpus.brainly"),
	}, nil
}

type searchRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type searchResponse struct {
	Data struct {
		QuestionSearch *struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Edges []struct {
				Node questionNode `json:"node"`
			} `json:"edges"`
		} `json:"questionSearch"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type questionNode struct {
	Content     string           `json:"content"`
	Attachments []attachmentNode `json:"attachments"`
	Answers     struct {
		Nodes []answerNode `json:"nodes"`
	} `json:"answers"`
}

type answerNode struct {
	Content     string           `json:"content"`
	Attachments []attachmentNode `json:"attachments"`
}

type attachmentNode struct {
	URL string `json:"url"`
}

// Search returns up to limit records for query, following result pages as needed.
// Every failure is reported as *corpus.LookupError.
func (c *Client) Search(ctx context.Context, query string, limit int) (corpus.Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, corpus.NewLookupError(query, errors.New("query is empty"))
	}
	if limit <= 0 {
		return corpus.Result{}, nil
	}

	result := make(corpus.Result, 0, limit)
	after := ""

	for len(result) < limit {
		first := limit - len(result)
		if c.pageSize > 0 {
			first = min(first, c.pageSize)
		}

		page, next, err := c.fetchPage(ctx, query, first, after)
		if err != nil {
			return nil, corpus.NewLookupError(query, err)
		}

		result = append(result, page...)
		if next == "" || len(page) == 0 {
			break
		}
		after = next
	}

	if len(result) > limit {
		result = result[:limit]
	}

	c.log.Debug("Corpus search finished", "query", query, "limit", limit, "records", len(result))

	return result, nil
}

// fetchPage performs one GraphQL request and returns its records and the next cursor.
func (c *Client) fetchPage(ctx context.Context, query string, first int, after string) (corpus.Result, string, error) {
	variables := map[string]any{"query": query, "first": first}
	if after != "" {
		variables["after"] = after
	}

	body, err := json.Marshal(searchRequest{
		OperationName: "SearchQuery",
		Query:         searchQuery,
		Variables:     variables,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode search request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		return req, nil
	})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("search returned HTTP %d: %s", resp.StatusCode, previewBody(raw))
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, "", fmt.Errorf("parse search response: %w", err)
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, item := range decoded.Errors {
			messages = append(messages, item.Message)
		}
		return nil, "", fmt.Errorf("graphql: %s", strings.Join(messages, "; "))
	}

	search := decoded.Data.QuestionSearch
	if search == nil {
		return nil, "", errors.New("graphql: missing questionSearch in response")
	}

	records := make(corpus.Result, 0, len(search.Edges))
	for _, edge := range search.Edges {
		records = append(records, toRecord(edge.Node))
	}

	next := ""
	if search.PageInfo.HasNextPage {
		next = search.PageInfo.EndCursor
	}

	return records, next, nil
}

func toRecord(node questionNode) corpus.QuestionRecord {
	record := corpus.QuestionRecord{
		Content:     htmlToText(node.Content),
		Attachments: toMedia(node.Attachments),
		Answers:     make([]corpus.AnswerRecord, 0, len(node.Answers.Nodes)),
	}

	for _, answer := range node.Answers.Nodes {
		record.Answers = append(record.Answers, corpus.AnswerRecord{
			Content:     htmlToText(answer.Content),
			Attachments: toMedia(answer.Attachments),
		})
	}

	return record
}

func toMedia(nodes []attachmentNode) []corpus.MediaRef {
	if len(nodes) == 0 {
		return nil
	}

	media := make([]corpus.MediaRef, 0, len(nodes))
	for _, node := range nodes {
		url := strings.TrimSpace(node.URL)
		if url == "" {
			continue
		}
		media = append(media, corpus.MediaRef{URL: url})
	}

	return media
}

func previewBody(raw []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(raw))
	if len(text) <= limit {
		return text
	}

	return text[:limit] + "..."
}
