package registry

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs handles one websocket connection. The client stays anonymous until
// its init frame binds a userId.
func ServeWs(hub *Hub, router Router, c *websocket.Conn) {
	client := &Client{Hub: hub, Conn: c, Send: make(chan []byte, 256), router: router}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
