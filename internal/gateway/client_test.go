package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageBody = `{
	"data": [{"recommendationId": "r1", "title": "Open bucket", "provider": [1]}],
	"pagination": {"cursor": {"next": "abc"}, "totalItems": 25}
}`

func TestListActiveBuildsQuery(t *testing.T) {
	var got *http.Request
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		got = req
		return jsonResponse(http.StatusOK, pageBody), nil
	}, nil)

	page, err := client.ListActive(context.Background(), ListParams{
		Cursor: "c1",
		Limit:  10,
		Search: "s3 bucket",
		Tags:   []string{"AWS", "CIS", "exposed"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/recommendations", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "c1", q.Get("cursor"))
	assert.Equal(t, "s3 bucket", q.Get("search"))
	assert.Equal(t, "AWS,CIS,exposed", q.Get("tags"))

	require.Len(t, page.Data, 1)
	assert.Equal(t, "abc", page.NextCursor())
	assert.Equal(t, 25, page.Pagination.TotalItems)
}

func TestListArchivedOmitsEmptyParams(t *testing.T) {
	var got *http.Request
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		got = req
		return jsonResponse(http.StatusOK, `{"data":[],"pagination":{"cursor":{"next":null},"totalItems":0}}`), nil
	}, nil)

	page, err := client.ListArchived(context.Background(), ListParams{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "/api/recommendations/archive", got.URL.Path)
	assert.Equal(t, "limit=10", got.URL.RawQuery)
	assert.Empty(t, page.NextCursor())
}

func TestListAllForCountingUsesHighLimit(t *testing.T) {
	var got *http.Request
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		got = req
		return jsonResponse(http.StatusOK, pageBody), nil
	}, nil)

	recs, err := client.ListAllForCounting(context.Background(), "iam")
	require.NoError(t, err)

	assert.Equal(t, "10000", got.URL.Query().Get("limit"))
	assert.Equal(t, "iam", got.URL.Query().Get("search"))
	assert.Empty(t, got.URL.Query().Get("cursor"))
	assert.Len(t, recs, 1)
}

func TestArchiveSendsBearerToken(t *testing.T) {
	var got *http.Request
	tokens := TokenFunc(func(context.Context) (string, error) { return "tok-123", nil })
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		got = req
		return jsonResponse(http.StatusOK, `{"message":"Recommendation archived"}`), nil
	}, tokens)

	res, err := client.Archive(context.Background(), "rec 42")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/recommendations/rec%2042/archive", got.URL.EscapedPath())
	assert.Equal(t, "Bearer tok-123", got.Header.Get("Authorization"))
	assert.Equal(t, "Recommendation archived", res.Message)
}

func TestUnarchivePath(t *testing.T) {
	var path string
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		path = req.URL.Path
		return jsonResponse(http.StatusOK, `{"message":"ok"}`), nil
	}, nil)

	_, err := client.Unarchive(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "/api/recommendations/42/unarchive", path)
}

func TestRejectionMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"body message", http.StatusBadRequest, `{"message":"Recommendation already archived"}`, "Recommendation already archived"},
		{"empty body", http.StatusNotFound, ``, "Failed to archive recommendation (status 404)"},
		{"unparsable body", http.StatusBadGateway, `<html>bad gateway</html>`, "Failed to archive recommendation (status 502)"},
		{"body without message", http.StatusConflict, `{"error":"x"}`, "Failed to archive recommendation (status 409)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGateway(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			}, nil)

			_, err := client.Archive(context.Background(), "42")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, Message(err))
		})
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	client := newTestGateway(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data": "nope"`), nil
	}, nil)

	_, err := client.ListActive(context.Background(), ListParams{Limit: 10})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Malformed response from server (status 200)", apiErr.Message)
}

func TestGetRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestGateway(func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(http.StatusServiceUnavailable, ``), nil
		}
		return jsonResponse(http.StatusOK, pageBody), nil
	}, nil)

	_, err := client.ListActive(context.Background(), ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	client := newTestGateway(func(*http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadRequest, `{"message":"bad cursor"}`), nil
	}, nil)

	_, err := client.ListActive(context.Background(), ListParams{Limit: 10, Cursor: "zzz"})
	require.EqualError(t, err, "bad cursor")
	assert.Equal(t, 1, calls)
}

func TestMutationsAreNotRetried(t *testing.T) {
	calls := 0
	client := newTestGateway(func(*http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusInternalServerError, ``), nil
	}, nil)

	_, err := client.Archive(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTransportFailure(t *testing.T) {
	client := newTestGateway(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}, nil)

	_, err := client.ListActive(context.Background(), ListParams{Limit: 10})
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, transportMessage, Message(err))
}

func TestLogin(t *testing.T) {
	var payload map[string]string
	client := newTestGateway(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &payload)
		return jsonResponse(http.StatusOK, `{"token":"jwt"}`), nil
	}, nil)

	token, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)
	assert.Equal(t, map[string]string{"username": "alice", "password": "secret"}, payload)
}

func TestLoginErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"nope"}`, "Invalid username or password."},
		{"forbidden", http.StatusForbidden, ``, "Invalid username or password."},
		{"body message", http.StatusBadRequest, `{"message":"Username is required"}`, "Username is required"},
		{"status text", http.StatusInternalServerError, `oops`, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestGateway(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			}, nil)

			_, err := client.Login(context.Background(), "alice", "wrong")
			require.Error(t, err)
			assert.Equal(t, tt.want, Message(err))
		})
	}
}

func TestMessageFallsBackToErrorText(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
