package server

import (
	"context"
	"sync"
	"time"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const dbTimeout = 5 * time.Second

// MessageNotifier is told about every appended message once it is committed.
type MessageNotifier interface {
	MessageReceived(ctx context.Context, conv types.Conversation, msg types.Message) error
}

type unloadRoomRequest struct {
	roomId string
}

type stopReq struct {
	done chan struct{}
}

type ChatServer struct {
	log            *logrus.Logger
	db             database.JobBoardRepository
	stats          stats.StatsProvider
	policy         UnreadPolicy
	notifier       MessageNotifier
	presence       *PresenceTracker
	clients        map[*Client]struct{}
	userMap        map[accountKey]map[*Client]struct{}
	clientsLock    sync.RWMutex
	rooms          map[string]*Room
	roomsLock      sync.RWMutex
	routeChan      chan *ClientMessage
	registerChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	broadcastChan  chan *ServerMessage
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger *logrus.Logger, db database.JobBoardRepository, su stats.StatsProvider, policy UnreadPolicy) (*ChatServer, error) {
	if db == nil {
		return nil, errors.New("repository is required")
	}

	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		policy:         policy,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[accountKey]map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		routeChan:      make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan unloadRoomRequest, 256),
		broadcastChan:  make(chan *ServerMessage, 512),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}
	cs.presence = NewPresenceTracker(logger, cs.queueBroadcast)

	su.RegisterMetric(stats.ActiveConnections)
	su.RegisterMetric(stats.LoadedRooms)
	su.RegisterMetric(stats.MessagesAppended)

	return cs, nil
}

// SetNotifier installs the notifier used after message appends. It must be
// called before Run.
func (cs *ChatServer) SetNotifier(n MessageNotifier) {
	cs.notifier = n
}

func (cs *ChatServer) Run() {
	for {
		select {
		case msg := <-cs.routeChan:
			cs.handleRoute(msg)
		case client := <-cs.registerChan:
			cs.log.WithFields(client.fields()).Debug("registering connection")
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.WithFields(client.fields()).Debug("removing connection")
			cs.removeClient(client)
		case msg := <-cs.broadcastChan:
			cs.handleBroadcast(msg)
		case req := <-cs.unloadRoomChan:
			cs.handleUnloadRequest(req)
		case req := <-cs.stop:
			cs.log.Info("shutting down chat server")
			for _, c := range cs.getClients(accountKey{}) {
				c.stopClient()
			}
			cs.unloadAllRooms()
			close(cs.done)
			close(req.done)
			return
		}
	}
}

// RegisterClient adds a connection to the server. It returns false once the
// server has stopped.
func (cs *ChatServer) RegisterClient(c *Client) bool {
	select {
	case cs.registerChan <- c:
		return true
	case <-cs.done:
		return false
	}
}

func (cs *ChatServer) deRegisterClient(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

// route hands a room-scoped message to the server loop, which loads the
// room when needed.
func (cs *ChatServer) route(msg *ClientMessage) bool {
	select {
	case cs.routeChan <- msg:
		return true
	default:
		return false
	}
}

func (cs *ChatServer) handleRoute(msg *ClientMessage) {
	chatId := msg.ChatId()
	room, ok := cs.getRoom(chatId)
	if !ok {
		var err error
		room, err = cs.loadRoom(chatId)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				msg.client.queueMessage(ErrChatNotFound(msg.Id))
				return
			}
			cs.log.WithError(err).WithField("chat_id", chatId).Error("load room")
			msg.client.queueMessage(ErrInternalError(msg.Id))
			return
		}
	}

	ch := room.clientMsgChan
	if msg.JoinChat != nil {
		ch = room.joinChan
	}

	select {
	case ch <- msg:
	default:
		cs.log.WithField("chat_id", chatId).Warn("room queue full")
		msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (cs *ChatServer) loadRoom(chatId string) (*Room, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	conv, err := cs.db.GetConversation(ctx, chatId)
	if err != nil {
		return nil, err
	}

	room := newRoom(cs, conv)
	cs.addRoom(chatId, room)
	go room.start()

	return room, nil
}

func (cs *ChatServer) handleBroadcast(msg *ServerMessage) {
	for _, c := range cs.getClients(msg.Recipient) {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

// queueBroadcast schedules msg for server-wide delivery without blocking.
func (cs *ChatServer) queueBroadcast(msg *ServerMessage) bool {
	select {
	case cs.broadcastChan <- msg:
		return true
	default:
		return false
	}
}

// Publish pushes a freshly created notification to the owner's live connections.
func (cs *ChatServer) Publish(n types.Notification) {
	ok := cs.queueBroadcast(&ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: &n,
		Recipient:    accountKey{id: n.OwnerId, kind: n.OwnerKind},
	})
	if !ok {
		cs.log.WithField("notification_id", n.Id).Warn("dropped realtime notification")
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	key := keyOf(c.account)
	if cs.userMap[key] == nil {
		cs.userMap[key] = make(map[*Client]struct{})
	}
	cs.userMap[key][c] = struct{}{}
	cs.stats.Incr(stats.ActiveConnections)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	key := keyOf(c.account)
	if conns, ok := cs.userMap[key]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(cs.userMap, key)
		}
	}
	cs.stats.Decr(stats.ActiveConnections)
}

// getClients returns the connections of key, or every connection for the zero key.
func (cs *ChatServer) getClients(key accountKey) []*Client {
	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()

	var clients []*Client
	if key.isZero() {
		for c := range cs.clients {
			clients = append(clients, c)
		}
		return clients
	}

	for c := range cs.userMap[key] {
		clients = append(clients, c)
	}
	return clients
}

func (cs *ChatServer) addRoom(id string, r *Room) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	cs.rooms[id] = r
	cs.stats.Incr(stats.LoadedRooms)
}

func (cs *ChatServer) getRoom(id string) (*Room, bool) {
	cs.roomsLock.RLock()
	defer cs.roomsLock.RUnlock()

	r, ok := cs.rooms[id]
	return r, ok
}

func (cs *ChatServer) removeRoom(id string) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	if _, ok := cs.rooms[id]; ok {
		delete(cs.rooms, id)
		cs.stats.Decr(stats.LoadedRooms)
	}
}

// handleUnloadRequest unloads an idle room unless work arrived after its
// kill timer fired.
func (cs *ChatServer) handleUnloadRequest(req unloadRoomRequest) {
	r, ok := cs.getRoom(req.roomId)
	if !ok {
		return
	}
	if r.occupancy() > 0 || len(r.joinChan) > 0 || len(r.clientMsgChan) > 0 {
		return
	}
	cs.unloadRoom(req.roomId)
}

func (cs *ChatServer) unloadRoom(id string) {
	r, ok := cs.getRoom(id)
	if !ok {
		return
	}

	cs.log.WithField("chat_id", id).Debug("unloading room")
	cs.removeRoom(id)

	done := make(chan string, 1)
	r.exit <- exitReq{done: done}
	<-done
}

func (cs *ChatServer) unloadAllRooms() {
	cs.roomsLock.RLock()
	ids := make([]string, 0, len(cs.rooms))
	for id := range cs.rooms {
		ids = append(ids, id)
	}
	cs.roomsLock.RUnlock()

	for _, id := range ids {
		cs.unloadRoom(id)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
