// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a telemetry byte stream from a pipe, serial tether or
// WebSocket
type Connection interface {
	io.Reader
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps an accepted WebSocket for byte-level reading
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, ErrConnectionClosed
			}
			return 0, err
		}

		// Telemetry is binary; anything else is ignored
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenPipeConnection opens the daemon's telemetry pipe for reading. The
// open blocks until the daemon has the write end open.
func OpenPipeConnection(path string) (Connection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("telemetry pipe %s: %w (is the daemon running?)", path, err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%s is not a named pipe", path)
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry pipe %s: %w", path, err)
	}
	return f, nil
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// AcceptWebSocketConnection listens on addr and waits for the daemon's
// WebSocket sink to connect to path. The listener is closed once one
// connection is accepted. When username is set the client must present
// matching HTTP Basic credentials.
func AcceptWebSocketConnection(ctx context.Context, addr, path, username, password string) (Connection, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	accepted := make(chan *websocket.Conn, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if username != "" && !checkBasicAuth(r, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="nautilus"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case accepted <- conn:
		default:
			// A consumer is already attached
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"),
				time.Now().Add(time.Second))
			conn.Close()
		}
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	select {
	case conn := <-accepted:
		return &WebSocketConnection{conn: conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func checkBasicAuth(r *http.Request, username, password string) bool {
	u, p, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
	return userOK && passOK
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("NAUTILUS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// sourceConfig is a resolved telemetry source selection
type sourceConfig struct {
	pipe     string
	port     string
	baud     int
	listen   string
	path     string
	username string
	password string
}

// resolveSource validates the source flags and reads the WebSocket
// password once, so reconnects do not prompt again
func resolveSource() (sourceConfig, error) {
	src := sourceConfig{
		pipe:     pipePath,
		port:     portName,
		baud:     baudRate,
		listen:   listenAddr,
		path:     listenPath,
		username: wsUsername,
	}

	set := 0
	for _, v := range []string{src.pipe, src.port, src.listen} {
		if v != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return src, fmt.Errorf("one of --pipe, --port or --listen must be specified")
	case set > 1:
		return src, fmt.Errorf("--pipe, --port and --listen are mutually exclusive")
	}

	if src.listen != "" && src.username != "" {
		pw, err := GetPassword()
		if err != nil {
			return src, err
		}
		src.password = pw
	}
	return src, nil
}

// describe returns a one-line description of the source
func (s sourceConfig) describe() string {
	switch {
	case s.pipe != "":
		return fmt.Sprintf("Pipe: %s", s.pipe)
	case s.port != "":
		return fmt.Sprintf("Serial: %s @ %d baud", s.port, s.baud)
	default:
		return fmt.Sprintf("WebSocket: listening on %s%s", s.listen, s.path)
	}
}

// open opens the selected source
func (s sourceConfig) open(ctx context.Context) (Connection, error) {
	switch {
	case s.pipe != "":
		return OpenPipeConnection(s.pipe)
	case s.port != "":
		return OpenSerialConnection(s.port, s.baud)
	default:
		return AcceptWebSocketConnection(ctx, s.listen, s.path, s.username, s.password)
	}
}

// OpenConnection opens the telemetry source selected by the flags
func OpenConnection(ctx context.Context) (Connection, string, error) {
	src, err := resolveSource()
	if err != nil {
		return nil, "", err
	}
	conn, err := src.open(ctx)
	if err != nil {
		return nil, "", err
	}
	return conn, src.describe(), nil
}
