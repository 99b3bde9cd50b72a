package server

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/mock"
)

var (
	testSeeker  = types.Account{Id: 7, Kind: types.AccountJobSeeker, DisplayName: "Jane Doe"}
	testCompany = types.Account{Id: 3, Kind: types.AccountCompany, DisplayName: "Acme"}
	testAdmin   = types.Account{Id: 1, Kind: types.AccountAdmin}
)

func testConversation() types.Conversation {
	return types.Conversation{
		Id:         11,
		ExternalId: "chat-1",
		UserId:     testSeeker.Id,
		CompanyId:  testCompany.Id,
	}
}

func newTestStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()
	return su
}

// newTestChatServer creates a ChatServer that is not running.
func newTestChatServer(t *testing.T, db database.JobBoardRepository, su *stats.MockStatsUpdater) *ChatServer {
	t.Helper()

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, RecipientAbsent)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

func newTestClient(cs *ChatServer, account types.Account) *Client {
	return &Client{
		id:         account.DisplayName + "-conn",
		chatServer: cs,
		log:        cs.log,
		account:    account,
		send:       make(chan *ServerMessage, 16),
		rooms:      make(map[string]*Room),
		stop:       make(chan struct{}),
	}
}

// newTestRoom builds a room that is not running; handlers are called directly.
func newTestRoom(cs *ChatServer) *Room {
	r := newRoom(cs, testConversation())
	r.killTimer = time.NewTimer(time.Hour)
	r.killTimer.Stop()
	return r
}

func expectMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message to client")
	}
	return nil
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message to client: %+v", msg)
	default:
	}
}

type recordingNotifier struct {
	calls chan types.Message
	err   error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(chan types.Message, 8)}
}

func (n *recordingNotifier) MessageReceived(_ context.Context, _ types.Conversation, msg types.Message) error {
	n.calls <- msg
	return n.err
}
