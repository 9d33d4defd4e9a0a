package server

import (
	"database/sql"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/famlink/famlink/internal/stats"
	"github.com/famlink/famlink/internal/types"
)

const idleRoomTimeout = time.Minute

type exitReq struct {
	done chan string
}

type unloadRoomRequest struct {
	key string
}

// Room is the broadcast scope for one family within one namespace.
// It owns its client set and processes joins, leaves and broadcasts
// on a single goroutine.
type Room struct {
	key           string
	familyId      int
	namespace     string
	eventServer   *EventServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	broadcastChan chan *ServerMessage
	clients       map[*Client]struct{}
	userMap       map[int]map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *log.Logger
	// killTimer unloads the room once no clients remain
	killTimer *time.Timer
	exit      chan exitReq
}

func roomKey(namespace string, familyId int) string {
	return namespace + "/" + strconv.Itoa(familyId)
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.key)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.broadcastChan:
			r.broadcast(msg)
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.key)
	select {
	case r.eventServer.unloadRoomChan <- unloadRoomRequest{key: r.key}:
	default:
		// retry on the next tick if the server is busy
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.key)

	r.clientLock.Lock()
	for c := range r.clients {
		c.delRoom(r.familyId)
	}
	r.clients = make(map[*Client]struct{})
	r.userMap = make(map[int]map[*Client]struct{})
	r.clientLock.Unlock()

	if e.done != nil {
		e.done <- r.key
	}
}

// handleJoin verifies family membership before admitting the client.
// Anyone who is not an owner, admin or member of the family the room
// represents is rejected with a permission failure.
func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	role, err := r.eventServer.db.GetFamilyRole(c.user.Id, r.familyId)
	if err != nil {
		if len(r.clients) == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}

		if errors.Is(err, sql.ErrNoRows) {
			r.log.Printf("user %q denied joining room %q", c.user.Username, r.key)
			c.queueMessage(ErrPermissionDenied(join.Id))
		} else {
			r.log.Println("GetFamilyRole:", err)
			c.queueMessage(ErrInternalError(join.Id))
		}
		return
	}

	family, err := r.eventServer.db.GetFamilyWithMembers(r.familyId)
	if err != nil {
		if len(r.clients) == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		r.log.Println("GetFamilyWithMembers:", err)
		c.queueMessage(ErrInternalError(join.Id))
		return
	}

	r.addClient(c)

	members := make([]types.FamilyMember, len(family.Members))
	for i, m := range family.Members {
		members[i] = types.FamilyMember{
			UserId:   m.AccountId,
			Username: m.Username,
			Role:     m.Role,
		}
	}

	c.queueMessage(NoErrOK(join.Id, types.Family{
		Id:      family.Id,
		Name:    family.Name,
		OwnerId: family.OwnerId,
		Members: members,
	}))

	r.log.Printf("user %q (%s) joined room %q", c.user.Username, role, r.key)

	// announce presence, excluding the joiner's own connections
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: NewEvent("presence", r.familyId, c.user.Id, map[string]any{
			"user_id": c.user.Id,
			"present": true,
		}, ""),
		SkipUserId: c.user.Id,
	})
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	client := leaveMsg.client
	r.removeClient(client)

	if leaveMsg.Id != 0 {
		client.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	// announce the user offline once its last connection left the room
	r.clientLock.RLock()
	gone := r.userMap[client.user.Id] == nil
	r.clientLock.RUnlock()

	if gone {
		r.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{
				Timestamp: Now(),
			},
			Event: NewEvent("presence", r.familyId, client.user.Id, map[string]any{
				"user_id": client.user.Id,
				"present": false,
			}, ""),
			SkipUserId: client.user.Id,
		})
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	c.addRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.delRoom(r.familyId)

	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}

	r.log.Printf("removed client %q from room %q", c.user.Username, r.key)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.key)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

// broadcast delivers a message to every client currently in the room.
// When SkipUserId is set, every connection owned by that user is
// skipped, no matter how many devices it holds.
func (r *Room) broadcast(msg *ServerMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}

	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if msg.SkipUserId != 0 && client.user.Id == msg.SkipUserId {
			continue
		}

		client.queueMessage(msg)
	}

	r.eventServer.stats.Incr(stats.EventsBroadcast)
}
