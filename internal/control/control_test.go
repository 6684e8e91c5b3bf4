package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	for _, req := range []Request{
		ReloadConfig{},
		CenterOutputs{Origin: "pit-button"},
		ResumeOutputs{},
		GetStatus{},
	} {
		b, err := Marshal(req)
		require.NoError(t, err)

		got, err := Unmarshal(b)
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestUnmarshal_WireShapes(t *testing.T) {
	got, err := Unmarshal([]byte(`{"type":"center_outputs"}`))
	require.NoError(t, err)
	assert.Equal(t, CenterOutputs{}, got)

	got, err = Unmarshal([]byte(`{"type":"resume_outputs","data":null}`))
	require.NoError(t, err)
	assert.Equal(t, ResumeOutputs{}, got)

	_, err = Unmarshal([]byte(`{"data":{}}`))
	assert.EqualError(t, err, "missing request type")

	_, err = Unmarshal([]byte(`{"type":"eject"}`))
	assert.EqualError(t, err, "unknown request type: eject")

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"type":"center_outputs","data":"x"}`))
	assert.Error(t, err)
}

func TestResponse(t *testing.T) {
	ok, err := OK(nil)
	require.NoError(t, err)
	assert.NoError(t, ok.Err())
	assert.Nil(t, ok.Data)

	ok, err = OK(map[string]int{"version": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":3}`, string(ok.Data))

	_, err = OK(func() {})
	assert.Error(t, err)

	fail := Fail(errors.New("boom"))
	assert.Equal(t, StatusError, fail.Status)
	assert.EqualError(t, fail.Err(), "daemon error: boom")

	assert.Error(t, Response{Status: "weird"}.Err())
}

// serveOnce answers every request on one connection with reply.
func serveOnce(t *testing.T, reply func(Request) Response) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "gdctl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	sock := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		enc := json.NewEncoder(conn)
		for sc.Scan() {
			req, err := Unmarshal(sc.Bytes())
			if err != nil {
				_ = enc.Encode(Fail(err))
				continue
			}
			_ = enc.Encode(reply(req))
		}
	}()
	return sock
}

func TestSend(t *testing.T) {
	seen := make(chan Request, 1)
	sock := serveOnce(t, func(r Request) Response {
		seen <- r
		resp, _ := OK(map[string]any{"version": 2, "source": "/etc/gimbaldac/config.yaml"})
		return resp
	})

	resp, err := Send(sock, ReloadConfig{})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, ReloadConfig{}, <-seen)
	assert.JSONEq(t, `{"version":2,"source":"/etc/gimbaldac/config.yaml"}`, string(resp.Data))
}

func TestSend_ErrorResponse(t *testing.T) {
	sock := serveOnce(t, func(Request) Response {
		return Fail(errors.New("invalid config: output.clamp must be in (0, 1]"))
	})

	resp, err := Send(sock, ReloadConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.clamp")
	assert.Equal(t, StatusError, resp.Status)
}

func TestSend_NoDaemon(t *testing.T) {
	_, err := Send(filepath.Join(t.TempDir(), "missing.sock"), GetStatus{})
	assert.Error(t, err)
}

func TestFetchStatus(t *testing.T) {
	sock := serveOnce(t, func(r Request) Response {
		if _, ok := r.(GetStatus); !ok {
			return Fail(errors.New("unexpected request"))
		}
		resp, _ := OK(Status{Running: true, Ticks: 42, Sample: Sample{Steering: 2048, Throttle: 4095}, ThrottleState: "ramping"})
		return resp
	})

	st, err := FetchStatus(sock)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, uint64(42), st.Ticks)
	assert.Equal(t, Sample{Steering: 2048, Throttle: 4095}, st.Sample)
	assert.Equal(t, "ramping", st.ThrottleState)
}
