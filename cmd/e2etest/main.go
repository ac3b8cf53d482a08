// E2E test: two participants join one room through a live relay, edit, and
// run code. Usage: go run ./cmd/e2etest -relay ws://localhost:8080/ws
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	relayURL = flag.String("relay", "ws://localhost:8080/ws", "relay WebSocket URL")
	runCode  = flag.Bool("run", true, "also exercise compileCode (needs a reachable execution provider)")
	timeout  = flag.Duration("timeout", 15*time.Second, "per-step wait")
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var log = logrus.New()

func main() {
	flag.Parse()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	roomID := "e2e-" + strconv.FormatInt(rand.Int63(), 36)

	log.Info(">> Connecting Alice...")
	alice := mustDial()
	defer alice.Close()
	send(alice, "join", map[string]string{"roomId": roomID, "userName": "Alice"})
	expect(alice, "joined")
	users := expect(alice, "userJoined")
	log.Infof("   Alice sees users %s ✓", users)

	log.Info(">> Connecting Bob...")
	bob := mustDial()
	defer bob.Close()
	send(bob, "join", map[string]string{"roomId": roomID, "userName": "Bob"})
	expect(bob, "joined")
	expect(bob, "userJoined")
	users = expect(alice, "userJoined")
	log.Infof("   Alice sees users %s ✓", users)

	log.Info(">> Alice edits...")
	send(alice, "codeChange", map[string]string{"roomId": roomID, "code": "print(1)"})
	update := expect(bob, "codeUpdate")
	log.Infof("   Bob received %s ✓", update)

	send(alice, "languageChange", map[string]string{"roomId": roomID, "language": "python"})
	update = expect(bob, "languageUpdate")
	log.Infof("   Bob received %s ✓", update)

	if *runCode {
		log.Info(">> Bob runs the code...")
		send(bob, "compileCode", map[string]string{
			"roomId":   roomID,
			"code":     "print(1)",
			"language": "python",
			"version":  "3.10.0",
		})
		log.Infof("   Alice received %s ✓", expect(alice, "codeResponse"))
		log.Infof("   Bob received %s ✓", expect(bob, "codeResponse"))
	}

	log.Info(">> Bob drops without leaving...")
	_ = bob.Close()
	users = expect(alice, "userJoined")
	log.Infof("   Alice sees users %s ✓", users)

	fmt.Println()
	log.Info("═══════════════════════════════")
	log.Info("  E2E TEST PASSED ✓")
	log.Info("═══════════════════════════════")
	os.Exit(0)
}

func mustDial() *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(*relayURL, nil)
	if err != nil {
		log.WithError(err).Fatal("dial")
	}
	return conn
}

func send(conn *websocket.Conn, event string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(envelope{Event: event, Data: raw})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.WithError(err).Fatalf("send %s", event)
	}
}

// expect reads frames until one named event arrives, skipping others such as
// typing signals. An error frame aborts the run.
func expect(conn *websocket.Conn, event string) string {
	deadline := time.Now().Add(*timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Fatalf("waiting for %s", event)
		}
		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.WithError(err).Fatalf("bad frame %q", msg)
		}
		if env.Event == "error" {
			log.Fatalf("server error while waiting for %s: %s", event, env.Data)
		}
		if env.Event == event {
			return string(env.Data)
		}
	}
}
