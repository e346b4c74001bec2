package currency_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
	"github.com/KhangChau12/scholarship-advisor/internal/currency"
)

func TestRateReturnsConversion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/pair/USD/VND") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"result":"success","conversion_rate":25400.5}`)
	}))
	defer server.Close()

	client := currency.Client{HTTPBaseURL: server.URL, APIKey: "k"}
	rate, ok := client.Rate(context.Background(), "usd", "vnd")
	if !ok || rate != 25400.5 {
		t.Fatalf("unexpected rate %v %v", rate, ok)
	}
}

func TestRateAbsentCases(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "unknown pair", handler: func(writer http.ResponseWriter, request *http.Request) {
			fmt.Fprint(writer, `{"result":"error","error-type":"unsupported-code"}`)
		}},
		{name: "server failure", handler: func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusServiceUnavailable)
		}},
		{name: "garbage body", handler: func(writer http.ResponseWriter, request *http.Request) {
			fmt.Fprint(writer, "not json")
		}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(testCase.handler)
			defer server.Close()
			client := currency.Client{HTTPBaseURL: server.URL, APIKey: "k"}
			if _, ok := client.Rate(context.Background(), "USD", "VND"); ok {
				t.Fatalf("expected absent rate")
			}
		})
	}
}

func TestRateIdentityPairSkipsNetwork(t *testing.T) {
	client := currency.Client{HTTPBaseURL: "http://127.0.0.1:1", APIKey: "k"}
	rate, ok := client.Rate(context.Background(), "USD", "usd")
	if !ok || rate != 1 {
		t.Fatalf("expected identity rate, got %v %v", rate, ok)
	}
}

func TestRateCachesLookups(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(writer, `{"result":"success","conversion_rate":2}`)
	}))
	defer server.Close()

	client := currency.Client{HTTPBaseURL: server.URL, APIKey: "k", Cache: cache.New(time.Minute)}
	for i := 0; i < 3; i++ {
		if rate, ok := client.Rate(context.Background(), "USD", "VND"); !ok || rate != 2 {
			t.Fatalf("lookup %d: got %v %v", i, rate, ok)
		}
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", calls)
	}
}
