package server

import (
	"sync"

	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/sirupsen/logrus"
)

type accountKey struct {
	id   int
	kind types.AccountKind
}

func keyOf(a types.Account) accountKey {
	return accountKey{id: a.Id, kind: a.Kind}
}

func (k accountKey) isZero() bool {
	return k.id == 0 && k.kind == ""
}

// PresenceTracker maps live connections to accounts. Nothing is persisted;
// state changes are broadcast to every connection.
type PresenceTracker struct {
	mu        sync.RWMutex
	conns     map[string]accountKey
	accounts  map[accountKey]map[string]struct{}
	broadcast func(*ServerMessage) bool
	log       *logrus.Logger
}

func NewPresenceTracker(logger *logrus.Logger, broadcast func(*ServerMessage) bool) *PresenceTracker {
	return &PresenceTracker{
		conns:     make(map[string]accountKey),
		accounts:  make(map[accountKey]map[string]struct{}),
		broadcast: broadcast,
		log:       logger,
	}
}

// SetOnline records connId as a live connection of account. A connection
// that was bound to another account is rebound.
func (p *PresenceTracker) SetOnline(account types.Account, connId string) types.PresenceState {
	key := keyOf(account)

	p.mu.Lock()
	if prev, ok := p.conns[connId]; ok && prev != key {
		p.unbind(prev, connId)
	}
	p.conns[connId] = key
	if p.accounts[key] == nil {
		p.accounts[key] = make(map[string]struct{})
	}
	p.accounts[key][connId] = struct{}{}
	p.mu.Unlock()

	state := types.PresenceState{
		AccountId:    account.Id,
		AccountKind:  account.Kind,
		Online:       true,
		ConnectionId: connId,
	}
	p.publish(state)
	return state
}

// SetOffline drops connId. The account stays online while it has other
// connections. Unknown connections are ignored.
func (p *PresenceTracker) SetOffline(connId string) (types.PresenceState, bool) {
	p.mu.Lock()
	key, ok := p.conns[connId]
	if !ok {
		p.mu.Unlock()
		return types.PresenceState{}, false
	}
	p.unbind(key, connId)
	online := len(p.accounts[key]) > 0
	p.mu.Unlock()

	state := types.PresenceState{
		AccountId:   key.id,
		AccountKind: key.kind,
		Online:      online,
	}
	p.publish(state)
	return state, true
}

func (p *PresenceTracker) IsOnline(accountId int, kind types.AccountKind) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts[accountKey{id: accountId, kind: kind}]) > 0
}

func (p *PresenceTracker) unbind(key accountKey, connId string) {
	delete(p.conns, connId)
	if conns, ok := p.accounts[key]; ok {
		delete(conns, connId)
		if len(conns) == 0 {
			delete(p.accounts, key)
		}
	}
}

func (p *PresenceTracker) publish(state types.PresenceState) {
	if p.broadcast == nil {
		return
	}
	if !p.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		UserStatus:  &state,
	}) {
		p.log.WithFields(logrus.Fields{
			"account_id":   state.AccountId,
			"account_kind": state.AccountKind,
		}).Warn("dropped presence update")
	}
}
