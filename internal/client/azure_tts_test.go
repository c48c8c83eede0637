package client_test

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/windfall/pronounce_service/internal/client"
	"github.com/windfall/pronounce_service/internal/errors"
)

func newTTSClient(srv *httptest.Server) *client.AzureTTSClient {
	return client.NewAzureTTSClient("key", "eastus",
		client.WithTTSBaseURL(srv.URL),
		client.WithTTSRetryPolicy(fastPolicy),
	)
}

func TestSynthesize_SendsSSML(t *testing.T) {
	var body []byte
	var format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		format = r.Header.Get("X-Microsoft-OutputFormat")
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFdata"))
	}))
	defer srv.Close()

	res, err := newTTSClient(srv).Synthesize(context.Background(), `Fish & "chips"`, "en-US-JennyNeural", "en-US")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "RIFFdata" || res.MIME != "audio/wav" {
		t.Errorf("result = %q %q", res.Audio, res.MIME)
	}
	if format != client.DefaultTTSFormat {
		t.Errorf("format = %q", format)
	}

	var ssml struct {
		Lang  string `xml:"lang,attr"`
		Voice struct {
			Name string `xml:"name,attr"`
			Text string `xml:",chardata"`
		} `xml:"voice"`
	}
	if err := xml.Unmarshal(body, &ssml); err != nil {
		t.Fatalf("invalid ssml %q: %v", body, err)
	}
	if ssml.Lang != "en-US" || ssml.Voice.Name != "en-US-JennyNeural" || ssml.Voice.Text != `Fish & "chips"` {
		t.Errorf("ssml = %+v", ssml)
	}
}

func TestSynthesize_MIMEFromFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{1, 2, 3})
	}))
	defer srv.Close()

	c := client.NewAzureTTSClient("key", "eastus",
		client.WithTTSBaseURL(srv.URL),
		client.WithTTSFormat("audio-24khz-48kbitrate-mono-mp3"),
	)
	res, err := c.Synthesize(context.Background(), "hi", "en-US-JennyNeural", "en-US")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.MIME != "audio/mpeg" {
		t.Errorf("mime = %q, want audio/mpeg", res.MIME)
	}
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  errors.ErrorCode
		wantCalls int32
	}{
		{"transient", http.StatusServiceUnavailable, errors.ErrSynthesizerUnavailable, 3},
		{"rate limited", http.StatusTooManyRequests, errors.ErrSynthesizerUnavailable, 3},
		{"rejected", http.StatusBadRequest, errors.ErrSynthesizerRejected, 1},
		{"unauthorized", http.StatusUnauthorized, errors.ErrSynthesizerRejected, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTTSClient(srv).Synthesize(context.Background(), "hi", "en-US-JennyNeural", "en-US")
			if !errors.Is(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}
