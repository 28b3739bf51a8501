// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/powerlog/lib/codec"
	"github.com/bureau-foundation/powerlog/lib/peercred"
	"github.com/bureau-foundation/powerlog/lib/testutil"
)

// sendRequest connects to a Unix socket, sends a CBOR request, and
// returns the decoded response envelope.
func sendRequest(t *testing.T, socketPath string, request any) Response {
	t.Helper()

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to socket: %v", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return response
}

// decodeData unmarshals the Data field of a response into target.
func decodeData(t *testing.T, response Response, target any) {
	t.Helper()
	if len(response.Data) == 0 {
		t.Fatal("response has no data to decode")
	}
	if err := codec.Unmarshal(response.Data, target); err != nil {
		t.Fatalf("decoding response data: %v", err)
	}
}

func testSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.SocketDir(t), "test.sock")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startServer runs server until the test ends and returns the socket
// path.
func startServer(t *testing.T, register func(*SocketServer)) string {
	t.Helper()
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	waitForSocket(t, socketPath)
	return socketPath
}

func TestSocketServerStatus(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
			return map[string]any{"capacity": 512, "write_cursor": 3}, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "status"})
	if !response.OK {
		t.Fatalf("expected ok=true, got error %q", response.Error)
	}

	var data map[string]any
	decodeData(t, response, &data)
	if data["capacity"] != uint64(512) {
		t.Errorf("capacity = %v (%T), want 512", data["capacity"], data["capacity"])
	}
	if data["write_cursor"] != uint64(3) {
		t.Errorf("write_cursor = %v (%T), want 3", data["write_cursor"], data["write_cursor"])
	}
}

func TestSocketServerPassesPeerCredentials(t *testing.T) {
	callers := make(chan peercred.Caller, 1)
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("whoami", func(ctx context.Context, raw []byte) (any, error) {
			caller, err := peercred.FromContext(ctx)
			if err != nil {
				return nil, err
			}
			callers <- caller
			return nil, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "whoami"})
	if !response.OK {
		t.Fatalf("whoami failed: %s", response.Error)
	}
	caller := testutil.RequireReceive(t, callers, 5*time.Second, "handler did not run")
	if caller.PID != os.Getpid() || caller.UID != os.Getuid() {
		t.Errorf("caller = %+v, want pid %d uid %d", caller, os.Getpid(), os.Getuid())
	}
}

func TestSocketServerUnknownAction(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("status", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "nonexistent"})
	if response.OK {
		t.Error("expected ok=false, got true")
	}
	if response.Code != CodeBadArgument {
		t.Errorf("code = %q, want %q", response.Code, CodeBadArgument)
	}
	if response.Error == "" {
		t.Error("expected error message for unknown action")
	}
}

func TestSocketServerMissingAction(t *testing.T) {
	socketPath := startServer(t, func(*SocketServer) {})

	response := sendRequest(t, socketPath, map[string]string{"foo": "bar"})
	if response.OK || response.Code != CodeBadArgument {
		t.Errorf("response = %+v, want bad-argument failure", response)
	}
}

func TestSocketServerInvalidCBOR(t *testing.T) {
	socketPath := startServer(t, func(*SocketServer) {})

	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte{0xff, 0xfe, 0xfd, 0xfc, 0xfb})
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if response.OK {
		t.Error("expected ok=false for invalid CBOR, got true")
	}
}

func TestSocketServerHandlerErrorCodes(t *testing.T) {
	errNoRecords := errors.New("no new records")
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("plain", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("something broke")
		})
		server.Handle("coded", func(ctx context.Context, raw []byte) (any, error) {
			return nil, WithCode(CodeNotFound, errNoRecords)
		})
		server.Handle("wrapped", func(ctx context.Context, raw []byte) (any, error) {
			return nil, fmt.Errorf("draining: %w", Errorf(CodeNotOpen, "aggregation off"))
		})
	})

	tests := []struct {
		action  string
		code    string
		message string
	}{
		{"plain", CodeInternal, "something broke"},
		{"coded", CodeNotFound, "no new records"},
		{"wrapped", CodeNotOpen, "draining: aggregation off"},
	}
	for _, test := range tests {
		response := sendRequest(t, socketPath, map[string]string{"action": test.action})
		if response.OK {
			t.Errorf("%s: expected ok=false", test.action)
		}
		if response.Code != test.code {
			t.Errorf("%s: code = %q, want %q", test.action, response.Code, test.code)
		}
		if response.Error != test.message {
			t.Errorf("%s: error = %q, want %q", test.action, response.Error, test.message)
		}
	}
}

func TestSocketServerNilResult(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) {
			return nil, nil
		})
	})

	response := sendRequest(t, socketPath, map[string]string{"action": "noop"})
	if !response.OK {
		t.Error("expected ok=true, got false")
	}
	if len(response.Data) != 0 {
		t.Errorf("expected no data in response, got %d bytes", len(response.Data))
	}
}

func TestSocketServerConcurrentRequests(t *testing.T) {
	socketPath := startServer(t, func(server *SocketServer) {
		server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
			var request struct {
				Value int `cbor:"value"`
			}
			if err := codec.Unmarshal(raw, &request); err != nil {
				return nil, WithCode(CodeBadArgument, err)
			}
			return map[string]any{"value": request.Value}, nil
		})
	})

	const concurrency = 20
	var clientWg sync.WaitGroup
	for i := range concurrency {
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			response := sendRequest(t, socketPath, map[string]any{
				"action": "echo",
				"value":  i,
			})
			if !response.OK {
				t.Errorf("request %d: expected ok=true", i)
				return
			}
			var data map[string]any
			decodeData(t, response, &data)
			if data["value"] != uint64(i) {
				t.Errorf("request %d: expected value=%d, got %v", i, i, data["value"])
			}
		}()
	}
	clientWg.Wait()
}

func TestSocketServerGracefulShutdown(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())

	handlerStarted := make(chan struct{})
	handlerRelease := make(chan struct{})
	server.Handle("slow", func(ctx context.Context, raw []byte) (any, error) {
		close(handlerStarted)
		<-handlerRelease
		return map[string]any{"completed": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.Serve(ctx)
	}()
	waitForSocket(t, socketPath)

	responseChan := make(chan Response, 1)
	go func() {
		responseChan <- sendRequest(t, socketPath, map[string]string{"action": "slow"})
	}()

	<-handlerStarted
	close(handlerRelease)
	cancel()

	response := testutil.RequireReceive(t, responseChan, 5*time.Second, "in-flight request did not complete")
	if !response.OK {
		t.Error("expected ok=true for in-flight request, got false")
	}
	var data map[string]any
	decodeData(t, response, &data)
	if data["completed"] != true {
		t.Errorf("expected completed=true, got %v", data["completed"])
	}

	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return after cancellation"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file not cleaned up after Serve returned")
	}
}

func TestSocketServerRemovesStaleSocket(t *testing.T) {
	socketPath := testSocketPath(t)
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatalf("creating stale file: %v", err)
	}

	server := NewSocketServer(socketPath, testLogger())
	server.Handle("noop", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(ctx) }()

	// The stale regular file exists from the start, so poll with a
	// real request instead of waitForSocket.
	client := NewClient(socketPath)
	var err error
	for attempt := 0; attempt < 500; attempt++ {
		if err = client.Call(ctx, "noop", nil, nil); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never became reachable: %v", err)
	}

	cancel()
	if err := testutil.RequireReceive(t, serveDone, 5*time.Second, "Serve did not return"); err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}

func TestSocketServerDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("/tmp/test.sock", testLogger())
	server.Handle("foo", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate handler registration")
		}
	}()
	server.Handle("foo", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
}
