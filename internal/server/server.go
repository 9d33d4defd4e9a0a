package server

import (
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/stats"
)

// Namespaces, one per domain feed. A connection is upgraded into
// exactly one of them.
const (
	NamespaceChat          = "chat"
	NamespaceMenu          = "menu"
	NamespaceRefrigerator  = "refrigerator"
	NamespaceShopping      = "shopping"
	NamespaceNotifications = "notifications"
)

func ValidNamespace(namespace string) bool {
	switch namespace {
	case NamespaceChat, NamespaceMenu, NamespaceRefrigerator, NamespaceShopping, NamespaceNotifications:
		return true
	}
	return false
}

type roomBroadcast struct {
	key string
	msg *ServerMessage
}

// EventServer owns the connection registry and the room registry. The
// registry is explicitly constructed at startup and drained at
// shutdown; it is in-memory only, so clients re-handshake after a
// restart.
type EventServer struct {
	log            *log.Logger
	db             database.FamLinkRepository
	stats          stats.StatsProvider
	gateways       map[string]*Gateway
	clients        map[int]map[*Client]struct{}
	clientsLock    sync.RWMutex
	joinChan       chan *ClientMessage
	RegisterChan   chan *Client
	DeregisterChan chan *Client
	unloadRoomChan chan unloadRoomRequest
	broadcastChan  chan *roomBroadcast
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewEventServer(logger *log.Logger, db database.FamLinkRepository, statsProvider stats.StatsProvider) (*EventServer, error) {
	return &EventServer{
		log:            logger,
		db:             db,
		stats:          statsProvider,
		gateways:       make(map[string]*Gateway),
		clients:        make(map[int]map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		RegisterChan:   make(chan *Client),
		DeregisterChan: make(chan *Client),
		unloadRoomChan: make(chan unloadRoomRequest, 64),
		broadcastChan:  make(chan *roomBroadcast, 256),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// RegisterGateway installs the command handler for one namespace.
// Must be called before Run.
func (es *EventServer) RegisterGateway(gw *Gateway) {
	es.gateways[gw.namespace] = gw
}

func (es *EventServer) gateway(namespace string) *Gateway {
	return es.gateways[namespace]
}

func (es *EventServer) Run() {
	for {
		select {
		case joinMsg := <-es.joinChan:
			es.handleJoin(joinMsg)
		case client := <-es.RegisterChan:
			es.log.Printf("adding connection %s from %q", client.id, client.user.Username)
			es.addClient(client)
		case client := <-es.DeregisterChan:
			es.log.Printf("removing connection %s from %q", client.id, client.user.Username)
			es.removeClient(client)
		case b := <-es.broadcastChan:
			if room, ok := es.rooms[b.key]; ok {
				select {
				case room.broadcastChan <- b.msg:
				default:
					es.log.Printf("broadcast channel full on room %q", room.key)
				}
			}
		case req := <-es.unloadRoomChan:
			if r, ok := es.rooms[req.key]; ok {
				delete(es.rooms, req.key)
				es.stats.Decr(stats.ActiveRooms)

				done := make(chan string)
				r.exit <- exitReq{done: done}
				<-done
			}
		case <-es.stop:
			es.log.Println("shutting down rooms")
			for _, r := range es.rooms {
				done := make(chan string)
				r.exit <- exitReq{done: done}
				<-done
				es.stats.Decr(stats.ActiveRooms)
			}

			close(es.done)
			return
		}
	}
}

func (es *EventServer) handleJoin(joinMsg *ClientMessage) {
	key := roomKey(joinMsg.client.namespace, joinMsg.Join.FamilyId)
	if room, ok := es.rooms[key]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			es.log.Printf("join channel full on room %q", room.key)
			joinMsg.client.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	// room not loaded yet; make sure the family exists before
	// spinning one up
	if _, err := es.db.GetFamilyWithMembers(joinMsg.Join.FamilyId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			joinMsg.client.queueMessage(ErrRoomNotFound(joinMsg.Id))
		} else {
			es.log.Println("GetFamilyWithMembers:", err)
			joinMsg.client.queueMessage(ErrInternalError(joinMsg.Id))
		}
		return
	}

	room := &Room{
		key:           key,
		familyId:      joinMsg.Join.FamilyId,
		namespace:     joinMsg.client.namespace,
		eventServer:   es,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		broadcastChan: make(chan *ServerMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[int]map[*Client]struct{}),
		log:           es.log,
		exit:          make(chan exitReq),
	}

	es.rooms[key] = room
	es.stats.Incr(stats.ActiveRooms)
	room.joinChan <- joinMsg

	go room.start()
}

func (es *EventServer) addClient(c *Client) {
	es.clientsLock.Lock()
	defer es.clientsLock.Unlock()

	if _, ok := es.clients[c.user.Id]; !ok {
		es.clients[c.user.Id] = make(map[*Client]struct{})
	}
	es.clients[c.user.Id][c] = struct{}{}
	es.stats.Incr(stats.ActiveConnections)
}

func (es *EventServer) removeClient(c *Client) {
	es.clientsLock.Lock()
	defer es.clientsLock.Unlock()

	if clients, ok := es.clients[c.user.Id]; ok {
		if _, exists := clients[c]; exists {
			delete(clients, c)
			es.stats.Decr(stats.ActiveConnections)

			if len(clients) == 0 {
				delete(es.clients, c.user.Id)
			}
		}
	}
}

// SendToUser delivers a message to every connection the user holds in
// the given namespace. This is the private channel: no room membership
// involved.
func (es *EventServer) SendToUser(userId int, namespace string, msg *ServerMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = Now()
	}

	es.clientsLock.RLock()
	defer es.clientsLock.RUnlock()

	for client := range es.clients[userId] {
		if client.namespace != namespace {
			continue
		}
		client.queueMessage(msg)
	}
}

// EmitNotification pushes a ledger event onto the user's notifications
// feed.
func (es *EventServer) EmitNotification(userId int, name string, payload any, message string) {
	es.SendToUser(userId, NamespaceNotifications, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: NewEvent(name, 0, 0, payload, message),
	})
}

// HasConnections reports whether the user holds at least one live
// connection in any namespace. Used to decide between realtime
// delivery and the push fallback.
func (es *EventServer) HasConnections(userId int) bool {
	es.clientsLock.RLock()
	defer es.clientsLock.RUnlock()

	return len(es.clients[userId]) > 0
}

// BroadcastToFamily queues a broadcast for the family's room in the
// given namespace. A room nobody has joined holds no connections, so
// the broadcast is dropped silently.
func (es *EventServer) BroadcastToFamily(namespace string, familyId int, msg *ServerMessage) {
	select {
	case es.broadcastChan <- &roomBroadcast{key: roomKey(namespace, familyId), msg: msg}:
	case <-es.stop:
	}
}

func (es *EventServer) Shutdown() {
	es.log.Println("received shutdown signal")

	es.clientsLock.Lock()
	for _, clients := range es.clients {
		for c := range clients {
			c.stopClient()
		}
	}
	es.clientsLock.Unlock()

	close(es.stop)

	<-es.done
}
