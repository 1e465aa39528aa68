package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteJSON sends an event with its data payload.
func WriteJSON(conn *websocket.Conn, event Event, data any) error {
	return write(conn, ResponsePayload{Event: event, Data: data})
}

// WriteError sends an error event carrying a response error code.
func WriteError(conn *websocket.Conn, code, msg string) error {
	return write(conn, ResponsePayload{Event: EventError, Code: code, Error: msg})
}

func write(conn *websocket.Conn, v ResponsePayload) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// ReadJSON reads and decodes a message into v under a read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
