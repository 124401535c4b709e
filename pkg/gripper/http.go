package gripper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grasplab/go-gripper/internal/httpc"
)

// Motion commands can take as long as a full homing run; state reads
// and stop must come back quickly.
const (
	motionTimeout = 60 * time.Second
	queryTimeout  = 2 * time.Second
)

// HTTPDevice implements Device against the gripper daemon's HTTP API.
//
// Motion commands (home, move, grasp) are serialized by an internal
// mutex: the hardware executes at most one at a time and concurrent
// callers queue. Stop is out-of-band: it cancels every registered
// motion, the executing one and any queued behind it, before issuing
// the stop call, so preempted commands fail with a Fault instead of
// hanging.
type HTTPDevice struct {
	baseURL string
	motion  *http.Client
	query   *http.Client

	mu sync.Mutex // serializes motion commands

	inflightMu sync.Mutex
	inflightID uint64
	inflight   map[uint64]context.CancelFunc
}

var _ Device = (*HTTPDevice)(nil)

// NewHTTPDevice creates a device adapter for the daemon at addr.
// addr may be a bare host (the default port 8800 is appended) or
// host:port.
func NewHTTPDevice(addr string) *HTTPDevice {
	if !strings.Contains(addr, ":") {
		addr += ":8800"
	}
	return &HTTPDevice{
		baseURL:  "http://" + addr,
		motion:   httpc.NewClient(motionTimeout),
		query:    httpc.NewClient(queryTimeout),
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Home implements Device.
func (d *HTTPDevice) Home(ctx context.Context) error {
	return d.motionCall(ctx, "home", "/api/gripper/homing", nil, nil)
}

// Stop implements Device. It cancels all registered motions first,
// then tells the daemon to halt and release the fingers. Stop does
// not queue behind the motion mutex.
func (d *HTTPDevice) Stop(ctx context.Context) error {
	d.cancelInflight()
	if err := d.postJSON(ctx, d.query, "/api/gripper/stop", nil, nil); err != nil {
		return NewFault("stop", "%v", err)
	}
	return nil
}

// Move implements Device.
func (d *HTTPDevice) Move(ctx context.Context, width, speed float64) (float64, error) {
	req := map[string]float64{"width": width, "speed": speed}
	var resp struct {
		Width float64 `json:"width"`
	}
	if err := d.motionCall(ctx, "move", "/api/gripper/move", req, &resp); err != nil {
		return 0, err
	}
	return resp.Width, nil
}

// Grasp implements Device.
func (d *HTTPDevice) Grasp(ctx context.Context, width, speed, force, epsilonInner, epsilonOuter float64) (State, error) {
	req := map[string]float64{
		"width":         width,
		"speed":         speed,
		"force":         force,
		"epsilon_inner": epsilonInner,
		"epsilon_outer": epsilonOuter,
	}
	var st State
	if err := d.motionCall(ctx, "grasp", "/api/gripper/grasp", req, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// ReadState implements Device. Reads bypass the motion mutex; the
// daemon serves state from its own cache while motions execute.
func (d *HTTPDevice) ReadState(ctx context.Context) (State, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/gripper/state", nil)
	if err != nil {
		return State{}, NewFault("read", "%v", err)
	}
	resp, err := d.query.Do(httpReq)
	if err != nil {
		return State{}, NewFault("read", "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return State{}, NewFault("read", "%s", daemonError(resp))
	}
	var st State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return State{}, NewFault("read", "decode state: %v", err)
	}
	return st, nil
}

// motionCall runs one serialized motion command. Each call registers
// its own cancel before it queues, so Stop preempts every queued
// command as well as the executing one. A queued call whose context
// was cancelled while it waited fails as soon as it takes the mutex.
func (d *HTTPDevice) motionCall(ctx context.Context, op, path string, req, out any) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	id := d.addInflight(cancel)
	defer d.removeInflight(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.postJSON(ctx, d.motion, path, req, out); err != nil {
		if ctx.Err() != nil {
			return NewFault(op, "%s interrupted by stop", op)
		}
		return NewFault(op, "%v", err)
	}
	return nil
}

func (d *HTTPDevice) addInflight(cancel context.CancelFunc) uint64 {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	d.inflightID++
	d.inflight[d.inflightID] = cancel
	return d.inflightID
}

func (d *HTTPDevice) removeInflight(id uint64) {
	d.inflightMu.Lock()
	delete(d.inflight, id)
	d.inflightMu.Unlock()
}

func (d *HTTPDevice) cancelInflight() {
	d.inflightMu.Lock()
	for _, cancel := range d.inflight {
		cancel()
	}
	d.inflightMu.Unlock()
}

// postJSON sends req as JSON and decodes the response into out when
// out is non-nil. Non-2xx responses become errors carrying the
// daemon's error message.
func (d *HTTPDevice) postJSON(ctx context.Context, client *http.Client, path string, req, out any) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s", daemonError(resp))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// daemonError extracts the error message from a non-2xx response.
func daemonError(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("device returned %s", resp.Status)
}
