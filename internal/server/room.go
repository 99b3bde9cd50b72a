package server

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	idleRoomTimeout = 5 * time.Second
	notifyTimeout   = 10 * time.Second
	displayIdDigits = 10
)

type exitReq struct {
	done chan string
}

// Room serializes joins, leaves, appends and typing signals for one conversation.
type Room struct {
	conv          types.Conversation
	externalId    string
	cs            *ChatServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	userMap       map[accountKey]map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *logrus.Entry
	// killTimer unloads the room once it has been empty for idleRoomTimeout
	killTimer *time.Timer
	exit      chan exitReq
	// done is closed once the room goroutine has exited
	done chan struct{}
}

func newRoom(cs *ChatServer, conv types.Conversation) *Room {
	return &Room{
		conv:          conv,
		externalId:    conv.ExternalId,
		cs:            cs,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[accountKey]map[*Client]struct{}),
		log:           cs.log.WithField("chat_id", conv.ExternalId),
		exit:          make(chan exitReq),
		done:          make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Debug("starting room")
	r.killTimer = time.NewTimer(idleRoomTimeout)

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leave := <-r.leaveChan:
			r.handleLeave(leave)
		case msg := <-r.clientMsgChan:
			switch {
			case msg.MessageSent != nil:
				r.handleMessageSent(msg)
			case msg.StartedTyping != nil:
				r.handleTyping(msg, true)
			case msg.StoppedTyping != nil:
				r.handleTyping(msg, false)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
			continue
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}

		if r.occupancy() == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		} else {
			r.killTimer.Stop()
		}
	}
}

func (r *Room) handleRoomTimeout() {
	select {
	case r.cs.unloadRoomChan <- unloadRoomRequest{roomId: r.externalId}:
		r.log.Debug("room timed out")
	default:
		r.log.Warn("unload queue full, retrying later")
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Debug("room exiting")

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.externalId)
	}
	r.clients = make(map[*Client]struct{})
	r.userMap = make(map[accountKey]map[*Client]struct{})
	r.clientLock.Unlock()

	if r.killTimer != nil {
		r.killTimer.Stop()
	}

	// reject anything queued after the unload decision
	for {
		select {
		case msg := <-r.joinChan:
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		case msg := <-r.clientMsgChan:
			msg.client.queueMessage(ErrServiceUnavailable(msg.Id))
		case <-r.leaveChan:
		default:
			close(r.done)
			if e.done != nil {
				e.done <- r.externalId
			}
			return
		}
	}
}

// canRead reports whether the client may observe the conversation.
func (r *Room) canRead(c *Client) bool {
	return c.account.Kind == types.AccountAdmin || r.conv.IsParty(c.account.Id, c.account.Kind)
}

func (r *Room) handleJoin(join *ClientMessage) {
	c := join.client
	if c.isClosed() {
		r.log.WithFields(c.fields()).Debug("dropping join from disconnected client")
		return
	}
	if !r.canRead(c) {
		c.queueMessage(ErrForbidden(join.Id))
		return
	}

	conv := r.conv
	if r.conv.IsParty(c.account.Id, c.account.Kind) {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		err := r.cs.db.MarkConversationOpened(ctx, r.conv.Id, c.account.Kind)
		cancel()
		if err != nil {
			r.log.WithError(err).Error("mark conversation opened")
			c.queueMessage(ErrInternalError(join.Id))
			return
		}

		switch c.account.Kind {
		case types.AccountJobSeeker:
			r.conv.UserUnread = 0
		case types.AccountCompany:
			r.conv.CompanyUnread = 0
		}
		conv = r.conv.ForAccount(c.account.Kind)
	}

	if !r.addClient(c) {
		r.log.WithFields(c.fields()).Debug("client disconnected during join")
		return
	}
	r.log.WithFields(c.fields()).Debug("client joined")

	c.queueMessage(NoErrOK(join.Id, conv))
}

func (r *Room) handleLeave(leave *ClientMessage) {
	c := leave.client
	r.removeClient(c)

	if leave.Id > 0 {
		c.queueMessage(NoErrOK(leave.Id, nil))
	}
}

func (r *Room) handleTyping(msg *ClientMessage, started bool) {
	c := msg.client
	if !r.conv.IsParty(c.account.Id, c.account.Kind) {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	signal := &TypingSignal{
		ChatId:      r.externalId,
		AccountId:   c.account.Id,
		AccountKind: c.account.Kind,
	}
	out := &ServerMessage{SkipClient: c}
	if started {
		out.UserStartedTyping = signal
	} else {
		out.UserStoppedTyping = signal
	}
	r.broadcast(out)
}

func (r *Room) handleMessageSent(msg *ClientMessage) {
	c := msg.client
	if !r.conv.IsParty(c.account.Id, c.account.Kind) {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	m := msg.MessageSent.Message
	if m.Kind == "" {
		m.Kind = types.MessageText
	}
	m.Text = strings.TrimSpace(m.Text)
	if err := m.Validate(); err != nil {
		c.queueMessage(ErrInvalidMessage(msg.Id, err.Error()))
		return
	}
	if m.Kind == types.MessageText {
		m.File = nil
	}

	m.SeqId = 0
	m.Id = newDisplayId()
	m.Owner = c.account.Id
	m.OwnerKind = c.account.Kind
	m.ChatId = r.externalId
	m.CreatedAt = msg.Timestamp
	if m.CreatedAt.IsZero() {
		m.CreatedAt = Now()
	}

	params := database.AppendMessageParams{
		ConversationId: r.conv.Id,
		Message:        m,
	}
	recipient := c.account.Kind.Counterpart()
	if r.shouldIncrement(recipient) {
		switch recipient {
		case types.AccountJobSeeker:
			params.UserUnreadDelta = 1
		case types.AccountCompany:
			params.CompanyUnreadDelta = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	conv, err := r.cs.db.AppendMessage(ctx, params)
	cancel()
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.queueMessage(ErrChatNotFound(msg.Id))
			return
		}
		r.log.WithError(err).Error("append message")
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	r.conv = conv
	saved := m
	if conv.LastMessage != nil {
		saved = *conv.LastMessage
	}
	r.cs.stats.Incr(stats.MessagesAppended)

	c.queueMessage(NoErrAccepted(msg.Id, saved))
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Id: msg.Id},
		NewMessage:  &saved,
	})

	r.notify(conv, saved)
}

// shouldIncrement applies the unread policy to the current membership.
func (r *Room) shouldIncrement(recipient types.AccountKind) bool {
	key := accountKey{id: r.conv.PartyId(recipient), kind: recipient}

	r.clientLock.RLock()
	occupancy := len(r.clients)
	joined := len(r.userMap[key]) > 0
	r.clientLock.RUnlock()

	return r.cs.policy.ShouldIncrement(occupancy, joined)
}

// notify runs the message notifier without holding up the room.
func (r *Room) notify(conv types.Conversation, msg types.Message) {
	if r.cs.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := r.cs.notifier.MessageReceived(ctx, conv, msg); err != nil {
			r.log.WithError(err).Warn("message notification failed")
		}
	}()
}

func (r *Room) occupancy() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.clients)
}

// addClient adds c to the room unless it has already disconnected.
func (r *Room) addClient(c *Client) bool {
	if !c.addRoom(r) {
		return false
	}

	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	key := keyOf(c.account)
	if r.userMap[key] == nil {
		r.userMap[key] = make(map[*Client]struct{})
	}
	r.userMap[key][c] = struct{}{}
	return true
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.externalId)

	key := keyOf(c.account)
	if conns, ok := r.userMap[key]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.userMap, key)
		}
	}
}

func (r *Room) broadcast(msg *ServerMessage) {
	msg.Timestamp = Now()

	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for c := range r.clients {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

func newDisplayId() string {
	var b strings.Builder
	for i := 0; i < displayIdDigits; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
