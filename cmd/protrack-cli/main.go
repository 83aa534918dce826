// Command protrack-cli is a manual test client for the ProTrack server. It
// connects over WebSocket, sends one action per input line, and prints every
// response envelope it receives.
//
// A line starting with '{' is sent as raw JSON. Any other line is parsed as
//
//	accion clave=valor clave=valor ...
//
// and wrapped into the {"accion": ..., "datos": {...}} message shape. Numeric
// values are sent as numbers.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "127.0.0.1:8181", "server address (host:port)")
	path := flag.String("path", "/ws", "WebSocket endpoint path")
	login := flag.String("login", "", "send a login first (usuario:contrasena)")
	flag.Parse()

	url := fmt.Sprintf("ws://%s%s", *addr, *path)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Connected to %s\n", url)

	// Responses arrive asynchronously from the sends; print them as they come
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					fmt.Fprintf(os.Stderr, "Connection closed: %v\n", err)
				}
				return
			}
			printResponse(data)
		}
	}()

	if *login != "" {
		usuario, contrasena, ok := strings.Cut(*login, ":")
		if !ok {
			return fmt.Errorf("invalid -login %q, expected usuario:contrasena", *login)
		}
		if err := sendLine(conn, fmt.Sprintf("login usuario=%s contrasena=%s", usuario, contrasena)); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sendLine(conn, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	<-done
	return nil
}

// sendLine turns one input line into a protocol message and sends it
func sendLine(conn *websocket.Conn, line string) error {
	var payload []byte

	if strings.HasPrefix(line, "{") {
		payload = []byte(line)
	} else {
		msg, err := buildMessage(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
			return nil
		}
		payload = msg
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// buildMessage assembles {"accion": ..., "datos": {...}} from the shorthand
// "accion clave=valor ..." form.
func buildMessage(line string) ([]byte, error) {
	fields := strings.Fields(line)
	accion := fields[0]

	datos := make(map[string]any, len(fields)-1)
	for _, f := range fields[1:] {
		clave, valor, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("expected clave=valor, got %q", f)
		}
		if n, err := strconv.Atoi(valor); err == nil {
			datos[clave] = n
		} else {
			datos[clave] = valor
		}
	}

	msg := map[string]any{"accion": accion}
	if len(datos) > 0 {
		msg["datos"] = datos
	}
	return json.Marshal(msg)
}

// printResponse pretty-prints one response envelope
func printResponse(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Printf("%s\n", data)
		return
	}
	fmt.Printf("%s\n", buf.String())
}
