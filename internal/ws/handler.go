// Package ws accepts WebSocket connections and pumps frames between clients
// and the command dispatcher. Each connection runs a reader (this handler's
// goroutine) and a writer draining the client's send queue; the router owns
// all shared state.
package ws

import (
	"context"
	"log"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gameroom/backend/internal/engine"
	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/protocol"
	"github.com/gameroom/backend/internal/router"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the protocol carries its own authentication
		return true
	},
}

// Handler returns the gin handler for the game protocol endpoint.
func Handler(clients *router.ClientMap, eng *engine.Engine, tc engine.TimeControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade error: %v", err)
			return
		}
		serve(conn, clients, eng, tc)
	}
}

func serve(conn *websocket.Conn, clients *router.ClientMap, eng *engine.Engine, tc engine.TimeControl) {
	addr := conn.RemoteAddr().String()
	log.Printf("[WS] connection established: %s", addr)

	send := make(chan string, router.SendQueueSize)
	clients.InsertClient(addr, send)
	go writePump(conn, addr, send)

	sess := &Session{Addr: addr, Clients: clients, Engine: eng, TimeCtrl: tc}
	readPump(conn, addr, clients, sess)

	// purges the client from every topic and closes the send queue, which
	// stops the writer
	clients.RemoveClient(addr)
	conn.Close()
	log.Printf("[WS] connection closed: %s", addr)
}

// readPump handles inbound frames until the connection dies. Every text
// frame yields exactly one reply (pings are answered at the framing layer).
func readPump(conn *websocket.Conn, addr string, clients *router.ClientMap, sess *Session) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] read error for %s: %v", addr, err)
			}
			return
		}

		var reply protocol.ServerCommand
		ok := true
		if msgType != websocket.TextMessage || !utf8.Valid(data) {
			reply = protocol.ErrorReply{Text: errs.ErrMessageParse.Error()}
		} else {
			reply, ok = sess.HandleFrame(ctx, string(data))
		}
		if !ok {
			continue
		}
		if err := clients.Send(addr, reply); err != nil {
			log.Printf("[WS] reply to %s failed: %v", addr, err)
		}
	}
}

// writePump drains the send queue onto the socket. A write failure closes
// the connection, which unblocks the reader.
func writePump(conn *websocket.Conn, addr string, send <-chan string) {
	for msg := range send {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.Printf("[WS] write error for %s: %v", addr, err)
			break
		}
	}
	conn.Close()
}
