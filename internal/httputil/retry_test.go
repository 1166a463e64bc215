// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-rag/pkg/types"
)

func TestRetryOverHTTP(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	policy := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := Retry(context.Background(), policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
		if err != nil {
			return err
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return CheckStatus("test", resp)
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   bool
		temporary bool
	}{
		{http.StatusOK, false, false},
		{http.StatusNotFound, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusBadGateway, true, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := CheckStatus("test", &http.Response{StatusCode: tt.code})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.temporary, IsTemporary(err))
		})
	}
}

func TestPolicyFromDefaults(t *testing.T) {
	p := PolicyFrom(types.RetryConfig{})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.BaseDelay)

	p = PolicyFrom(types.RetryConfig{MaxAttempts: 7, BaseDelay: time.Millisecond})
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, time.Millisecond, p.BaseDelay)
}

func TestRetry(t *testing.T) {
	policy := Policy{MaxAttempts: 4, BaseDelay: time.Millisecond}
	rateLimited := &StatusError{Service: "test", StatusCode: http.StatusTooManyRequests}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return rateLimited
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		permanent := errors.New("bad request")
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return rateLimited
		})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
		assert.Equal(t, 4, calls)
	})

	t.Run("honors cancellation during wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
		err := Retry(ctx, slow, func(context.Context) error {
			cancel()
			return rateLimited
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
