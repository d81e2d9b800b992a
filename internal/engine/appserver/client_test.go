package appserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/internal/common/logger"
)

// fakeServer answers requests over a pair of pipes the way an app-server
// subprocess would over stdio.
type fakeServer struct {
	in  *io.PipeReader
	out *io.PipeWriter
}

func newClientPair(t *testing.T, handle func(req Request) interface{}) (*Client, *fakeServer) {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	srv := &fakeServer{in: serverIn, out: serverOut}
	go func() {
		scanner := bufio.NewScanner(serverIn)
		for scanner.Scan() {
			var req Request
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			if req.ID == nil {
				continue // notification
			}
			if reply := handle(req); reply != nil {
				data, _ := json.Marshal(reply)
				serverOut.Write(append(data, '\n'))
			}
		}
	}()

	client := NewClient(clientOut, clientIn, logger.Default())
	client.Start()
	t.Cleanup(func() {
		client.Close()
		serverOut.Close()
		clientOut.Close()
	})
	return client, srv
}

func TestCallRoundTrip(t *testing.T) {
	client, _ := newClientPair(t, func(req Request) interface{} {
		assert.Equal(t, MethodThreadStart, req.Method)
		result, _ := json.Marshal(ThreadStartResult{Thread: &Thread{ID: "th_1"}})
		return Response{ID: req.ID, Result: result}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var result ThreadStartResult
	err := client.Call(ctx, MethodThreadStart, ThreadStartParams{Model: "gpt-5"}, &result)
	require.NoError(t, err)
	require.NotNil(t, result.Thread)
	assert.Equal(t, "th_1", result.Thread.ID)
}

func TestCallSurfacesServerError(t *testing.T) {
	client, _ := newClientPair(t, func(req Request) interface{} {
		return Response{ID: req.ID, Error: &Error{Code: -32000, Message: "no such thread"}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Call(ctx, MethodTurnStart, TurnStartParams{ThreadID: "gone"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such thread")
}

func TestCallHonorsContext(t *testing.T) {
	client, _ := newClientPair(t, func(req Request) interface{} {
		return nil // never reply
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.Call(ctx, MethodInitialize, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotificationsReachHandler(t *testing.T) {
	received := make(chan string, 4)

	client, srv := newClientPair(t, func(req Request) interface{} {
		return Response{ID: req.ID}
	})
	client.SetNotificationHandler(func(method string, params json.RawMessage) {
		received <- method
	})

	note, _ := json.Marshal(Notification{Method: NotifyTurnStarted})
	srv.out.Write(append(note, '\n'))

	select {
	case method := <-received:
		assert.Equal(t, NotifyTurnStarted, method)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	client, _ := newClientPair(t, func(req Request) interface{} {
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Call(context.Background(), MethodInitialize, nil, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	client.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client closed")
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never failed")
	}
}
