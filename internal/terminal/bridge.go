// Package terminal bridges a WebSocket connection to a local PTY so the
// admin can drive a real shell from the site.
package terminal

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
)

// resizeFrame is the only JSON control frame the client sends; every
// binary frame is raw terminal input.
type resizeFrame struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

type Bridge struct {
	shell    string
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewBridge(shell string, logger *log.Logger) *Bridge {
	if shell == "" {
		shell = "/bin/bash"
	}
	return &Bridge{
		shell:  shell,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Session auth already ran before the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Printf("terminal upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	cmd := exec.Command(b.shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		b.logger.Printf("terminal pty start failed: %v", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "pty unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer func() {
		ptmx.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	var writeMu sync.Mutex
	done := make(chan struct{})

	// PTY output to the socket.
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		for {
			n, readErr := ptmx.Read(buf)
			if n > 0 {
				writeMu.Lock()
				err := conn.WriteMessage(websocket.BinaryMessage, buf[:n])
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
			if readErr != nil {
				writeMu.Lock()
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shell exited"),
					time.Now().Add(time.Second))
				writeMu.Unlock()
				return
			}
		}
	}()

	// Socket input to the PTY.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.TextMessage:
			if size, ok := parseResize(data); ok {
				if err := pty.Setsize(ptmx, size); err != nil {
					b.logger.Printf("terminal resize failed: %v", err)
				}
			}
		case websocket.BinaryMessage:
			if _, err := ptmx.Write(data); err != nil {
				b.logger.Printf("terminal write failed: %v", err)
			}
		}
	}

	ptmx.Close()
	<-done
}

func parseResize(data []byte) (*pty.Winsize, bool) {
	var frame resizeFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, false
	}
	if frame.Type != "resize" || frame.Cols == 0 || frame.Rows == 0 {
		return nil, false
	}
	return &pty.Winsize{Cols: frame.Cols, Rows: frame.Rows}, true
}
