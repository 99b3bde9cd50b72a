package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
)

type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *logrus.Logger
	account    types.Account
	send       chan *ServerMessage
	rooms      map[string]*Room
	// closed is set under roomsLock once the connection has left its rooms
	closed     bool
	roomsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(account types.Account, conn *websocket.Conn, cs *ChatServer, l *logrus.Logger) *Client {
	return &Client{
		id:         uuid.NewString(),
		conn:       conn,
		chatServer: cs,
		log:        l,
		account:    account,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]*Room),
		stop:       make(chan struct{}),
	}
}

func (c *Client) fields() logrus.Fields {
	return logrus.Fields{
		"connection_id": c.id,
		"account_id":    c.account.Id,
		"account_kind":  c.account.Kind,
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.WithFields(c.fields()).Debug("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.WithError(err).Error("serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.WithFields(c.fields()).Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.WithError(err).WithFields(c.fields()).Warn("ws read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithError(err).WithFields(c.fields()).Debug("parse client message")
			c.queueMessage(ErrInvalidMessage(-1, ""))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()
		c.dispatch(&msg)
	}
}

// dispatch routes one client event. Payload account ids must match the
// authenticated account.
func (c *Client) dispatch(msg *ClientMessage) {
	if id := msg.ClaimedAccountId(); id != 0 && id != c.account.Id {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	switch {
	case msg.SetOnline != nil:
		c.setOnline(msg)
	case msg.JoinChat != nil:
		c.routeToServer(msg)
	case msg.LeaveChat != nil:
		c.leaveRoom(msg)
	case msg.MessageSent != nil, msg.StartedTyping != nil, msg.StoppedTyping != nil:
		if msg.ChatId() == "" {
			c.queueMessage(ErrInvalidMessage(msg.Id, "chatId is required"))
			return
		}
		if r := c.getRoom(msg.ChatId()); r != nil {
			select {
			case r.clientMsgChan <- msg:
			default:
				c.log.WithField("chat_id", r.externalId).Warn("room queue full")
				c.queueMessage(ErrServiceUnavailable(msg.Id))
			}
			return
		}
		c.routeToServer(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id, "unknown event"))
	}
}

func (c *Client) setOnline(msg *ClientMessage) {
	if kind := msg.SetOnline.AccountKind; kind != "" && kind != c.account.Kind {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	state := c.chatServer.presence.SetOnline(c.account, c.id)
	if msg.Id > 0 {
		c.queueMessage(NoErrOK(msg.Id, state))
	}
}

func (c *Client) routeToServer(msg *ClientMessage) {
	if msg.ChatId() == "" {
		c.queueMessage(ErrInvalidMessage(msg.Id, "chatId is required"))
		return
	}
	if !c.chatServer.route(msg) {
		c.log.Warn("route queue full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.getRoom(msg.LeaveChat.ChatId)
	if r == nil {
		c.queueMessage(ErrChatNotFound(msg.Id))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.WithField("chat_id", r.externalId).Warn("leave queue full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.WithFields(c.fields()).Warn("send queue full, dropping message")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.WithError(err).WithFields(c.fields()).Warn("ws write")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.leaveAllRooms()
	c.chatServer.presence.SetOffline(c.id)
	c.chatServer.deRegisterClient(c)
	c.stopClient()
}

// leaveAllRooms closes the client to further joins and waits until every
// joined room has accepted its leave or exited.
func (c *Client) leaveAllRooms() {
	c.roomsLock.Lock()
	c.closed = true
	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	c.roomsLock.Unlock()

	for _, r := range rooms {
		select {
		case r.leaveChan <- &ClientMessage{
			LeaveChat: &ChatRef{ChatId: r.externalId},
			client:    c,
		}:
		case <-r.done:
		}
	}
}

// addRoom records r as joined. It returns false once the client has left
// all of its rooms on disconnect.
func (c *Client) addRoom(r *Room) bool {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	if c.closed {
		return false
	}
	c.rooms[r.externalId] = r
	return true
}

func (c *Client) isClosed() bool {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()
	return c.closed
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	delete(c.rooms, id)
}

func (c *Client) getRoom(id string) *Room {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()
	return c.rooms[id]
}
