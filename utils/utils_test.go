package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMD5Hex(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", MD5Hex(""))
	assert.Equal(t, MD5Hex("report.pdf"), MD5Hex("report.pdf"))
	assert.NotEqual(t, MD5Hex("a.pdf"), MD5Hex("b.pdf"))
}

func TestCompressTextBelowThreshold(t *testing.T) {
	data, algo, err := CompressText("short", 100)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, algo)
	assert.Equal(t, []byte("short"), data)
}

func TestCompressTextRoundTrip(t *testing.T) {
	text := strings.Repeat("--- Page 1 ---\nThe quick brown fox jumps over the lazy dog.\n", 500)

	data, algo, err := CompressText(text, 1024)
	require.NoError(t, err)
	assert.Equal(t, CompressionBrotli, algo)
	assert.Less(t, len(data), len(text))

	out, err := DecompressText(data, algo)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestDecompressUnknownAlgorithm(t *testing.T) {
	_, err := DecompressData([]byte("x"), "zstd")
	assert.Error(t, err)
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithBadRequest(c, "Only PDF files are allowed", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bad_request", body.ErrorCode)
	assert.Equal(t, "Only PDF files are allowed", body.Message)
}

func TestRespondWithTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		received     int64
		wantReceived bool
	}{
		{"declared length", 30 << 20, true},
		{"cut off while reading", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Set("request_id", "req-1")

			RespondWithTooLarge(c, 25<<20, tt.received)

			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
			var body struct {
				ErrorResponse
				Details map[string]float64 `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "request_too_large", body.ErrorCode)
			assert.Equal(t, "req-1", body.RequestID)
			assert.Equal(t, float64(25), body.Details["max_size_mb"])
			_, ok := body.Details["received"]
			assert.Equal(t, tt.wantReceived, ok)
		})
	}
}

func TestStoreTimeouts(t *testing.T) {
	ctx, cancel := WithWriteTimeout(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(WriteTimeout), deadline, time.Second)

	parent, cancelParent := context.WithTimeout(context.Background(), time.Second)
	defer cancelParent()
	ctx, cancel = WithScanTimeout(parent)
	defer cancel()
	deadline, _ = ctx.Deadline()
	parentDeadline, _ := parent.Deadline()
	assert.Equal(t, parentDeadline, deadline)
}
