// grip sends a single command to a running gripperd and prints the
// result.
//
// Usage:
//
//	grip [-addr host:port] home
//	grip [-addr host:port] stop
//	grip [-addr host:port] move -width 0.04 [-speed 0.1]
//	grip [-addr host:port] grasp -width 0.03 [-speed 0.1] [-force 20] [-epsilon 0.005]
//	grip [-addr host:port] action -position 0.02 [-effort 20]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/grasplab/go-gripper/internal/httpc"
)

type commandResponse struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Result *struct {
		Success bool   `json:"success"`
		Error   string `json:"error,omitempty"`
	} `json:"result,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "gripperd address")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: grip [-addr host:port] <home|stop|move|grasp|action> [args]")
		os.Exit(2)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	var path string
	var body any
	switch cmd {
	case "home":
		path = "/api/gripper/homing"
	case "stop":
		path = "/api/gripper/stop"
	case "move":
		fs := flag.NewFlagSet("move", flag.ExitOnError)
		width := fs.Float64("width", 0, "target width in meters")
		speed := fs.Float64("speed", 0.1, "finger speed in m/s")
		fs.Parse(args)
		path = "/api/gripper/move"
		body = map[string]float64{"width": *width, "speed": *speed}
	case "grasp":
		fs := flag.NewFlagSet("grasp", flag.ExitOnError)
		width := fs.Float64("width", 0, "expected object width in meters")
		speed := fs.Float64("speed", 0.1, "finger speed in m/s")
		force := fs.Float64("force", 20, "grasp force in newtons")
		epsilon := fs.Float64("epsilon", 0.005, "inner/outer width tolerance")
		fs.Parse(args)
		path = "/api/gripper/grasp"
		body = map[string]float64{
			"width":         *width,
			"speed":         *speed,
			"force":         *force,
			"epsilon_inner": *epsilon,
			"epsilon_outer": *epsilon,
		}
	case "action":
		fs := flag.NewFlagSet("action", flag.ExitOnError)
		position := fs.Float64("position", 0, "per-finger joint position")
		effort := fs.Float64("effort", 0, "max effort; > 0 grasps")
		fs.Parse(args)
		path = "/api/gripper/gripper_action"
		body = map[string]float64{"position": *position, "max_effort": *effort}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		os.Exit(2)
	}

	resp, err := post("http://"+*addr+path+"?wait=true", body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if resp.Result == nil {
		fmt.Printf("%s: %s (id %s)\n", cmd, resp.Status, resp.ID)
		return
	}
	if resp.Result.Success {
		fmt.Printf("%s: ok\n", cmd)
		return
	}
	fmt.Printf("%s: %s: %s\n", cmd, resp.Status, resp.Result.Error)
	os.Exit(1)
}

func post(url string, body any) (*commandResponse, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("gripperd returned %s", resp.Status)
	}

	var out commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
