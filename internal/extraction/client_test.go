package extraction_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetscan-backend/internal/extraction"
)

func TestExtract_ParsesFieldsInOrder(t *testing.T) {
	var gotAuth, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		json.NewEncoder(w).Encode(map[string]any{
			"fields": []map[string]any{
				{"name": "nombre_paciente", "value": "Firulais", "confidence": 0.91},
				{"name": "hallazgos", "value": "Hígado aumentado"},
			},
		})
	}))
	defer server.Close()

	client := extraction.NewClient(server.URL, "key-123", 5*time.Second)
	raw, err := client.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "application/pdf", gotContentType)

	require.Len(t, raw.Fields, 2)
	assert.Equal(t, "nombre_paciente", raw.Fields[0].Name)
	assert.Equal(t, "Firulais", raw.Fields[0].Value)
	require.NotNil(t, raw.Fields[0].Confidence)
	assert.InDelta(t, 0.91, *raw.Fields[0].Confidence, 1e-9)
	assert.Nil(t, raw.Fields[1].Confidence, "absent confidence stays absent")
}

func TestExtract_ServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusRequestTimeout} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "vendor unhappy", status)
		}))

		client := extraction.NewClient(server.URL, "key", time.Second)
		_, err := client.Extract(context.Background(), []byte("%PDF"))
		server.Close()

		require.Error(t, err, "status=%d", status)
		assert.True(t, extraction.IsTransient(err), "status=%d must be retryable", status)

		var svcErr *extraction.ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, status, svcErr.StatusCode)
	}
}

func TestExtract_ClientErrorsArePermanent(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusUnauthorized} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rejected", status)
		}))

		client := extraction.NewClient(server.URL, "key", time.Second)
		_, err := client.Extract(context.Background(), []byte("%PDF"))
		server.Close()

		require.Error(t, err, "status=%d", status)
		assert.False(t, extraction.IsTransient(err), "status=%d must not be retried", status)
	}
}

func TestExtract_ConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing is listening anymore

	client := extraction.NewClient(server.URL, "key", time.Second)
	_, err := client.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, extraction.IsTransient(err))
}

func TestExtract_MalformedBodyIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := extraction.NewClient(server.URL, "key", time.Second)
	_, err := client.Extract(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.False(t, extraction.IsTransient(err))
}

func TestIsTransient_UnrelatedError(t *testing.T) {
	assert.False(t, extraction.IsTransient(assert.AnError))
}
