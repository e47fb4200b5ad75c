package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection with the hub and blocks until the peer goes away.
func ServeWs(hub *Hub, c *websocket.Conn, onMessage MessageHandler) *Client {
	client := NewClient(hub, c, onMessage)
	hub.Register(client)

	go client.writePump()
	client.readPump()
	return client
}
