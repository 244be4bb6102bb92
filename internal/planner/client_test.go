package planner

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTranscript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call1-transcript.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestUploadReturnsFeedback(t *testing.T) {
	var gotPath, gotFile, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotFile = header.Filename
		gotBody = string(raw)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"chatBotFeedBack": "mission accepted"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "Asterisk", nil)
	path := writeTranscript(t, "IN: hello chronos\nOUT: copy\n")

	feedback, err := client.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if feedback != "mission accepted" {
		t.Fatalf("feedback = %q", feedback)
	}
	if gotPath != "/api/Asterisk/upload" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotFile != "call1-transcript.txt" {
		t.Fatalf("uploaded filename = %q", gotFile)
	}
	if !strings.Contains(gotBody, "hello chronos") {
		t.Fatalf("uploaded body = %q", gotBody)
	}
}

func TestUploadNon201IsErrorWithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace unknown", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "Asterisk", nil)
	_, err := client.Upload(context.Background(), writeTranscript(t, "IN: hi\n"))
	if err == nil {
		t.Fatalf("Upload() should fail on non-201")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "namespace unknown") {
		t.Fatalf("error = %v, want status and body", err)
	}
}

func TestUploadEvenOKStatusOtherThan201IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"chatBotFeedBack": "nope"}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "Asterisk", nil)
	if _, err := client.Upload(context.Background(), writeTranscript(t, "IN: hi\n")); err == nil {
		t.Fatalf("Upload() should accept only 201")
	}
}

func TestUploadMissingFileFails(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "Asterisk", nil)
	if _, err := client.Upload(context.Background(), "/does/not/exist.txt"); err == nil {
		t.Fatalf("Upload() should fail for a missing transcript")
	}
}
