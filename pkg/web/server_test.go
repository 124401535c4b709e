package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasplab/go-gripper/pkg/control"
	"github.com/grasplab/go-gripper/pkg/gripper"
	"github.com/grasplab/go-gripper/pkg/telemetry"
)

func newTestServer(t *testing.T) (*Server, *gripper.Sim, *telemetry.Cache) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sim := gripper.NewSim()
	sim.MotionDelay = time.Millisecond

	cache := &telemetry.Cache{}
	handlers := control.NewHandlers(sim, 0.01, 0.1, 0.005)
	dispatcher := control.NewDispatcher(handlers)

	s := NewServer(ctx, ":0", dispatcher, cache)
	t.Cleanup(func() { s.Shutdown() })
	return s, sim, cache
}

func postJSON(t *testing.T, s *Server, path string, body any) (int, commandResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out commandResponse
	if resp.StatusCode < 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestMoveEndpoint_Wait(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, resp := postJSON(t, s, "/api/gripper/move?wait=true", map[string]float64{
		"width": 0.04, "speed": 0.1,
	})

	require.Equal(t, 200, code)
	assert.Equal(t, control.KindMove, resp.Kind)
	assert.Equal(t, control.StatusSucceeded, resp.Status)
	require.NotNil(t, resp.Result)
	assert.True(t, resp.Result.Success)
}

func TestMoveEndpoint_WidthNotReached(t *testing.T) {
	s, sim, _ := newTestServer(t)
	sim.SetSlip(-0.02)

	code, resp := postJSON(t, s, "/api/gripper/move?wait=true", map[string]float64{
		"width": 0.04, "speed": 0.1,
	})

	require.Equal(t, 200, code)
	assert.Equal(t, control.StatusRejected, resp.Status)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.Success)
	assert.Contains(t, resp.Result.Error, "width not reached")
}

func TestHomingEndpoint_FaultAborts(t *testing.T) {
	s, sim, _ := newTestServer(t)
	sim.FailNext("home", "connection lost")

	code, resp := postJSON(t, s, "/api/gripper/homing?wait=true", nil)

	require.Equal(t, 200, code)
	assert.Equal(t, control.StatusAborted, resp.Status)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.Success)
	assert.Equal(t, "connection lost", resp.Result.Error)

	// The daemon keeps running: the next command is fine.
	code, resp = postJSON(t, s, "/api/gripper/homing?wait=true", nil)
	require.Equal(t, 200, code)
	assert.Equal(t, control.StatusSucceeded, resp.Status)
}

func TestCommandEndpoint_AsyncLifecycle(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, resp := postJSON(t, s, "/api/gripper/grasp", map[string]float64{
		"width": 0.03, "speed": 0.1, "force": 20,
		"epsilon_inner": 0.005, "epsilon_outer": 0.005,
	})
	require.Equal(t, 202, code)
	require.NotEmpty(t, resp.ID)

	// Poll until terminal.
	deadline := time.Now().Add(2 * time.Second)
	for {
		req := httptest.NewRequest("GET", "/api/commands/"+resp.ID, nil)
		r, err := s.App().Test(req, 5000)
		require.NoError(t, err)
		require.Equal(t, 200, r.StatusCode)

		var status commandResponse
		require.NoError(t, json.NewDecoder(r.Body).Decode(&status))
		r.Body.Close()

		if status.Status.Terminal() {
			// No object in the sim: a rejected grasp, not an abort.
			assert.Equal(t, control.StatusRejected, status.Status)
			require.NotNil(t, status.Result)
			assert.False(t, status.Result.Success)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("command stuck in status %s", status.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCommandEndpoint_Lookup(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/commands/not-a-uuid", nil)
	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	resp.Body.Close()

	req = httptest.NewRequest("GET", "/api/commands/"+uuid.NewString(), nil)
	resp, err = s.App().Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	resp.Body.Close()
}

func TestStateEndpoint(t *testing.T) {
	s, _, cache := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/state", nil)
	resp, err := s.App().Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode, "no state before the first poll")
	resp.Body.Close()

	cache.Store(gripper.State{Width: 0.05, MaxWidth: 0.08, Temperature: 36})

	req = httptest.NewRequest("GET", "/api/state", nil)
	resp, err = s.App().Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var st gripper.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	assert.Equal(t, 0.05, st.Width)
	assert.Equal(t, 0.08, st.MaxWidth)
}

func TestJointStatesWebsocket(t *testing.T) {
	s, _, cache := newTestServer(t)
	cache.Store(gripper.State{Width: 0.05})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)

	url := fmt.Sprintf("ws://%s/ws/joint_states", ln.Addr())
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Feed the sink like the publisher would until the subscriber
	// sees a sample.
	sink := s.JointStateSink()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st, ok := cache.TryLoad()
				if !ok {
					continue
				}
				sink.PublishSample(telemetry.NewJointStateSample(
					[2]string{"finger_joint1", "finger_joint2"}, st, time.Now()))
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var sample telemetry.JointStateSample
	require.NoError(t, json.Unmarshal(data, &sample))
	assert.Equal(t, [2]string{"finger_joint1", "finger_joint2"}, sample.Names)
	assert.Equal(t, [2]float64{0.025, 0.025}, sample.Positions)
}
