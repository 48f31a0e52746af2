package app

import (
	"testing"
)

func TestParseLimiterReply(t *testing.T) {
	const windowMs = int64(60000)

	testCases := []struct {
		name           string
		raw            interface{}
		wantCount      int64
		wantRetryAfter int
	}{
		{
			name:           "count and ttl pass through",
			raw:            []interface{}{int64(3), int64(30000)},
			wantCount:      3,
			wantRetryAfter: 30,
		},
		{
			name:           "fractional ttl rounds up",
			raw:            []interface{}{int64(11), int64(1500)},
			wantCount:      11,
			wantRetryAfter: 2,
		},
		{
			name:           "sub-second ttl clamps to one second",
			raw:            []interface{}{int64(11), int64(200)},
			wantCount:      11,
			wantRetryAfter: 1,
		},
		{
			name:           "missing expiry falls back to the full window",
			raw:            []interface{}{int64(1), int64(-1)},
			wantCount:      1,
			wantRetryAfter: 60,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			count, retryAfter, err := parseLimiterReply(tc.raw, windowMs)
			if err != nil {
				t.Fatalf("parseLimiterReply failed: %v", err)
			}
			if count != tc.wantCount {
				t.Fatalf("expected count %d, got %d", tc.wantCount, count)
			}
			if retryAfter != tc.wantRetryAfter {
				t.Fatalf("expected retry-after %d, got %d", tc.wantRetryAfter, retryAfter)
			}
		})
	}
}

func TestParseLimiterReplyRejectsMalformedReplies(t *testing.T) {
	testCases := []struct {
		name string
		raw  interface{}
	}{
		{name: "not a slice", raw: int64(5)},
		{name: "wrong arity", raw: []interface{}{int64(5)}},
		{name: "count not an integer", raw: []interface{}{"5", int64(1000)}},
		{name: "ttl not an integer", raw: []interface{}{int64(5), "1000"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := parseLimiterReply(tc.raw, 60000); err == nil {
				t.Fatal("expected an error for malformed reply")
			}
		})
	}
}
