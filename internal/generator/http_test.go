package generator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/generator"
	"passfuse/internal/services"
)

func TestHTTPStreamsNDJSON(t *testing.T) {
	requests := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var request map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		requests <- request
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"password":"janedoe1990","score":0.25}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"password":"Jane1990!"}`)
		fmt.Fprintln(w, `{"score":0.1}`)
	}))
	defer server.Close()

	gen := generator.NewHTTP("model", server.URL, generator.HTTPOptions{APIKey: "secret", TopN: 100, SamplingTemperature: 0.7})
	s, err := gen.Generate(context.Background(), janeDoe(t))
	require.NoError(t, err)
	got := drain(t, s)
	require.NoError(t, s.Close())

	require.Len(t, got, 2)
	assert.Equal(t, "janedoe1990", got[0].Password)
	assert.True(t, got[0].HasScore)
	assert.InDelta(t, 0.25, got[0].Score, 1e-9)
	assert.Equal(t, "Jane1990!", got[1].Password)
	assert.Equal(t, 2, got[1].Rank)
	assert.False(t, got[1].HasScore)

	request := <-requests
	assert.EqualValues(t, 100, request["top_n"])
	assert.InDelta(t, 0.7, request["sampling_temperature"], 1e-9)
	identityDoc, ok := request["identity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", identityDoc["id"])
	assert.Contains(t, request["line"], "name:Jane Doe")
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"password":"janedoe1990"}`)
	}))
	defer server.Close()

	gen := generator.NewHTTP("model", server.URL, generator.HTTPOptions{}, generator.WithRetry(3, time.Millisecond))
	s, err := gen.Generate(context.Background(), janeDoe(t))
	require.NoError(t, err)
	got := drain(t, s)
	require.Len(t, got, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad identity", http.StatusBadRequest)
	}))
	defer server.Close()

	gen := generator.NewHTTP("model", server.URL, generator.HTTPOptions{}, generator.WithRetry(3, time.Millisecond))
	_, err := gen.Generate(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrExternalTool)
	assert.Contains(t, err.Error(), "http 400")
	assert.Contains(t, err.Error(), "bad identity")
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPThroughAdapterIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	gen := generator.NewHTTP("model", server.URL, generator.HTTPOptions{},
		generator.WithRetry(1, 0), generator.WithHTTPClient(server.Client()))
	a := newAdapter(t, generator.Spec{Name: "model", Timeout: time.Second}, gen)

	s, err := a.Open(context.Background(), janeDoe(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrGeneratorUnavailable)
	assert.Equal(t, services.KindGeneratorUnavailable, services.Kind(err))
	assert.Empty(t, drain(t, s))
}
