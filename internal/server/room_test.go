package server

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
	"github.com/famlink/famlink/internal/testutil"
	"github.com/famlink/famlink/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestRoom(t *testing.T, es *EventServer, familyId int) *Room {
	return &Room{
		key:           roomKey(NamespaceChat, familyId),
		familyId:      familyId,
		namespace:     NamespaceChat,
		eventServer:   es,
		joinChan:      make(chan *ClientMessage, 16),
		leaveChan:     make(chan *ClientMessage, 16),
		broadcastChan: make(chan *ServerMessage, 16),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[int]map[*Client]struct{}),
		log:           testutil.TestLogger(t),
		killTimer:     time.NewTimer(idleRoomTimeout),
		exit:          make(chan exitReq),
	}
}

func newTestClient(user types.User, namespace string) *Client {
	return &Client{
		user:      user,
		namespace: namespace,
		send:      make(chan *ServerMessage, 16),
		rooms:     make(map[int]*Room),
		stop:      make(chan struct{}),
	}
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "chat/42", roomKey(NamespaceChat, 42))
	assert.Equal(t, "menu/1", roomKey(NamespaceMenu, 1))
}

func Test_addClient_removeClient_room(t *testing.T) {
	es := newTestEventServer(t, &database.MockFamLinkRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, es, 1)

	user := types.User{Id: 1, Username: "testuser"}
	c1 := newTestClient(user, NamespaceChat)
	c2 := newTestClient(user, NamespaceChat)

	room.addClient(c1)
	room.addClient(c2)
	assert.Len(t, room.clients, 2, "expected two connections in the room")
	assert.Len(t, room.userMap[user.Id], 2, "expected both connections tracked for the user")
	assert.Equal(t, room, c1.getRoom(1), "expected client to track the room")

	room.removeClient(c1)
	assert.Len(t, room.clients, 1, "expected one connection after removal")
	assert.Len(t, room.userMap[user.Id], 1, "expected userMap entry to shrink")

	room.removeClient(c2)
	assert.Empty(t, room.clients, "expected empty room")
	assert.NotContains(t, room.userMap, user.Id, "expected userMap entry removed with last connection")
	assert.Nil(t, c2.getRoom(1), "expected client room tracking cleared")
}

func Test_broadcast_skipsAllConnectionsOfUser(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.EventsBroadcast).Once()
	defer su.AssertExpectations(t)

	es := newTestEventServer(t, &database.MockFamLinkRepository{}, su)
	room := newTestRoom(t, es, 1)

	actor := types.User{Id: 1, Username: "actor"}
	other := types.User{Id: 2, Username: "other"}

	actorPhone := newTestClient(actor, NamespaceChat)
	actorLaptop := newTestClient(actor, NamespaceChat)
	otherPhone := newTestClient(other, NamespaceChat)

	room.addClient(actorPhone)
	room.addClient(actorLaptop)
	room.addClient(otherPhone)

	room.broadcast(&ServerMessage{
		Event:      NewEvent("new_message", 1, actor.Id, nil, ""),
		SkipUserId: actor.Id,
	})

	select {
	case msg := <-otherPhone.send:
		assert.Equal(t, "new_message", msg.Event.Name, "expected event delivered to other member")
	default:
		t.Error("expected delivery to the other member")
	}

	for _, c := range []*Client{actorPhone, actorLaptop} {
		select {
		case <-c.send:
			t.Error("expected no echo on any of the actor's connections")
		default:
		}
	}
}

func Test_broadcast_noSkip(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.EventsBroadcast).Once()
	defer su.AssertExpectations(t)

	es := newTestEventServer(t, &database.MockFamLinkRepository{}, su)
	room := newTestRoom(t, es, 1)

	c := newTestClient(types.User{Id: 1, Username: "testuser"}, NamespaceChat)
	room.addClient(c)

	room.broadcast(&ServerMessage{Event: NewEvent("presence", 1, 0, nil, "")})

	select {
	case msg := <-c.send:
		assert.False(t, msg.Timestamp.IsZero(), "expected timestamp stamped on broadcast")
	default:
		t.Error("expected delivery without a skip set")
	}
}

func Test_handleJoin(t *testing.T) {
	t.Run("member joins and peers see presence", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetFamilyRole", 1, 1).Return(types.RoleMember, nil).Once()
		db.On("GetFamilyWithMembers", 1).Return(&database.Family{
			Id:      1,
			Name:    "testfamily",
			OwnerId: 2,
			Members: []database.FamilyMember{
				{FamilyId: 1, AccountId: 1, Username: "joiner", Role: types.RoleMember},
				{FamilyId: 1, AccountId: 2, Username: "owner", Role: types.RoleOwner},
			},
		}, nil).Once()
		defer db.AssertExpectations(t)

		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.EventsBroadcast).Once()
		defer su.AssertExpectations(t)

		es := newTestEventServer(t, db, su)
		room := newTestRoom(t, es, 1)

		peer := newTestClient(types.User{Id: 2, Username: "owner"}, NamespaceChat)
		room.addClient(peer)

		joiner := newTestClient(types.User{Id: 1, Username: "joiner"}, NamespaceChat)
		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5},
			Join:        &Join{FamilyId: 1},
			client:      joiner,
		})

		assert.Contains(t, room.clients, joiner, "expected joiner admitted to the room")

		select {
		case msg := <-joiner.send:
			assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected OK response")
			family, ok := msg.Response.Data.(types.Family)
			assert.True(t, ok, "expected family payload in join response")
			assert.Len(t, family.Members, 2, "expected member roster in join response")
		default:
			t.Error("expected join response")
		}

		select {
		case msg := <-peer.send:
			assert.Equal(t, "presence", msg.Event.Name, "expected presence event for peers")
		default:
			t.Error("expected presence broadcast to peers")
		}
	})

	t.Run("non-member is denied", func(t *testing.T) {
		db := &database.MockFamLinkRepository{}
		db.On("GetFamilyRole", 3, 1).Return("", sql.ErrNoRows).Once()
		defer db.AssertExpectations(t)

		es := newTestEventServer(t, db, &stats.MockStatsUpdater{})
		room := newTestRoom(t, es, 1)

		outsider := newTestClient(types.User{Id: 3, Username: "outsider"}, NamespaceChat)
		room.handleJoin(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2},
			Join:        &Join{FamilyId: 1},
			client:      outsider,
		})

		assert.NotContains(t, room.clients, outsider, "expected outsider kept out of the room")

		select {
		case msg := <-outsider.send:
			assert.Equal(t, http.StatusForbidden, msg.Response.ResponseCode, "expected permission denied")
		default:
			t.Error("expected error response")
		}
	})
}

func Test_handleLeave(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.EventsBroadcast).Once()
	defer su.AssertExpectations(t)

	es := newTestEventServer(t, &database.MockFamLinkRepository{}, su)
	room := newTestRoom(t, es, 1)

	leaver := newTestClient(types.User{Id: 1, Username: "leaver"}, NamespaceChat)
	peer := newTestClient(types.User{Id: 2, Username: "peer"}, NamespaceChat)
	room.addClient(leaver)
	room.addClient(peer)

	room.handleLeave(&ClientMessage{
		BaseMessage: BaseMessage{Id: 3},
		Leave:       &Leave{FamilyId: 1},
		client:      leaver,
	})

	assert.NotContains(t, room.clients, leaver, "expected leaver removed from the room")

	select {
	case msg := <-leaver.send:
		assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected leave confirmation")
	default:
		t.Error("expected leave response")
	}

	select {
	case msg := <-peer.send:
		assert.Equal(t, "presence", msg.Event.Name, "expected offline presence event")
	default:
		t.Error("expected presence broadcast after last connection left")
	}
}

func Test_handleRoomTimeout(t *testing.T) {
	t.Run("successfully requests unload", func(t *testing.T) {
		es := newTestEventServer(t, &database.MockFamLinkRepository{}, &stats.MockStatsUpdater{})
		room := newTestRoom(t, es, 1)

		room.handleRoomTimeout()
		select {
		case req := <-es.unloadRoomChan:
			assert.Equal(t, room.key, req.key, "expected room key in unload request")
		default:
			t.Error("handleRoomTimeout did not send unload request")
		}
	})

	t.Run("unload channel is full", func(t *testing.T) {
		es := newTestEventServer(t, &database.MockFamLinkRepository{}, &stats.MockStatsUpdater{})
		es.unloadRoomChan = make(chan unloadRoomRequest, 1)
		es.unloadRoomChan <- unloadRoomRequest{key: "chat/99"}

		room := newTestRoom(t, es, 1)
		room.killTimer.Stop()

		room.handleRoomTimeout()
		assert.True(t, room.killTimer.Stop(), "expected kill timer rearmed after failed unload request")
	})
}

func Test_handleRoomExit(t *testing.T) {
	es := newTestEventServer(t, &database.MockFamLinkRepository{}, &stats.MockStatsUpdater{})
	room := newTestRoom(t, es, 1)

	c := newTestClient(types.User{Id: 1, Username: "testuser"}, NamespaceChat)
	room.addClient(c)

	done := make(chan string)
	go room.handleRoomExit(exitReq{done: done})

	select {
	case key := <-done:
		assert.Equal(t, room.key, key, "expected room key on done channel")
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: handleRoomExit did not complete")
	}

	assert.Empty(t, room.clients, "expected client set cleared")
	assert.Nil(t, c.getRoom(1), "expected client room tracking cleared")
}
