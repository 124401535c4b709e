// grip-monitor subscribes to the gripperd MQTT telemetry stream and
// prints joint state samples until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

const jointStatesTopic = "gripper/joint_states"

type jointStateSample struct {
	Timestamp string     `json:"timestamp"`
	Names     [2]string  `json:"name"`
	Positions [2]float64 `json:"position"`
}

func main() {
	broker := flag.String("broker", "mqtt://localhost:1883", "MQTT broker URL")
	flag.Parse()

	// Run until cancelled by the user (e.g. ctrl-c)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u, err := url.Parse(*broker)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid broker URL:", err)
		os.Exit(2)
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     20,
		CleanStartOnInitialConnection: false,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			fmt.Println("connected to", u.Host)
			// Subscribing in OnConnectionUp ensures the subscription is
			// reestablished if the connection drops.
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: jointStatesTopic, QoS: 0},
				},
			}); err != nil {
				fmt.Fprintf(os.Stderr, "failed to subscribe: %s\n", err)
			}
		},
		OnConnectError: func(err error) {
			fmt.Fprintf(os.Stderr, "connection error: %s\n", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "grip-monitor",
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					printSample(pr.Packet.Payload)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				fmt.Fprintf(os.Stderr, "client error: %s\n", err)
			},
		},
	}

	c, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect:", err)
		os.Exit(1)
	}
	if err := c.AwaitConnection(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "failed to connect:", err)
		os.Exit(1)
	}

	<-ctx.Done()
}

func printSample(payload []byte) {
	var s jointStateSample
	if err := json.Unmarshal(payload, &s); err != nil {
		fmt.Fprintf(os.Stderr, "bad sample: %s\n", err)
		return
	}
	fmt.Printf("%s  %s=%.4f  %s=%.4f\n",
		s.Timestamp, s.Names[0], s.Positions[0], s.Names[1], s.Positions[1])
}
