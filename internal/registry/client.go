package registry

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Router receives every decoded inbound frame of a connection, in order, on
// the connection's reader goroutine. That goroutine is the single writer of
// the user's session state.
type Router interface {
	HandleFrame(client *Client, raw []byte)
	HandleDisconnect(client *Client)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserId bound by the init frame. Empty until then.
	UserId string

	// Buffered channel of outbound messages.
	Send chan []byte

	router Router

	// Set once Deliver has retired the connection. Send is closed by the
	// hub after that; further sends would panic. Only touched on the
	// reader goroutine.
	retired bool
}

// Attach binds the client to a user and registers it with the hub. Must be
// called once, from the reader goroutine, when the init frame arrives.
func (c *Client) Attach(userId string) {
	c.UserId = userId
	c.Hub.register <- c
}

// Deliver marshals v and queues it on this connection. A full buffer means
// the consumer stopped draining; the connection is retired rather than
// frames silently dropped, and the client recovers by reconnecting.
func (c *Client) Deliver(v interface{}) {
	if c.retired {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
		c.retired = true
		if c.UserId != "" {
			c.Hub.unregister <- c
		} else if c.Conn != nil {
			c.Conn.Close()
		}
	}
}

// readPump pumps messages from the websocket connection to the router.
func (c *Client) readPump() {
	defer func() {
		c.router.HandleDisconnect(c)
		if c.UserId != "" {
			c.Hub.unregister <- c
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.router.HandleFrame(c, raw)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
