package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/push"
	"github.com/famlink/famlink/internal/types"
)

// Notifier is the durable notification ledger a gateway writes through.
type Notifier interface {
	Notify(userId int, title, body string) error
	MarkRead(id, userId int) error
	MarkAllRead(userId int) error
}

// PushSender delivers best-effort pushes to a user's registered
// devices.
type PushSender interface {
	SendToUser(ctx context.Context, userId int, title, body string, data map[string]string) push.Result
}

var errBadPayload = errors.New("invalid payload")

type ActionRequest struct {
	User     types.User
	FamilyId int
	Payload  json.RawMessage
}

type Mutator func(req ActionRequest) (any, error)

// NotifyBuilder renders the ledger/push notification for an action.
type NotifyBuilder func(req ActionRequest, result any) (title, body string)

// Action describes one named command within a namespace. Mutate may be
// nil for ephemeral actions (typing indicators) that only broadcast.
// Personal actions are scoped to the calling user and never touch a
// family room.
type Action struct {
	Event    string
	Mutate   Mutator
	Notify   NotifyBuilder
	Personal bool
}

// Gateway dispatches the commands of one namespace. Every gateway runs
// the same algorithm: permission check, delegate the mutation, answer
// the caller, then fan out through fault-isolated post-commit hooks.
type Gateway struct {
	namespace   string
	eventServer *EventServer
	db          database.FamLinkRepository
	notifier    Notifier
	push        PushSender
	actions     map[string]Action
	log         *log.Logger
}

func NewGateway(namespace string, es *EventServer, notifier Notifier, pusher PushSender, actions map[string]Action, logger *log.Logger) *Gateway {
	return &Gateway{
		namespace:   namespace,
		eventServer: es,
		db:          es.db,
		notifier:    notifier,
		push:        pusher,
		actions:     actions,
		log:         logger,
	}
}

func (g *Gateway) Handle(c *Client, msg *ClientMessage) {
	action, ok := g.actions[msg.Command.Name]
	if !ok {
		c.queueMessage(ErrUnknownCommand(msg.Id))
		return
	}

	req := ActionRequest{
		User:     c.user,
		FamilyId: msg.Command.FamilyId,
		Payload:  msg.Command.Payload,
	}

	if !action.Personal {
		if _, err := g.db.GetFamilyRole(req.User.Id, req.FamilyId); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.queueMessage(ErrPermissionDenied(msg.Id))
			} else {
				g.log.Println("GetFamilyRole:", err)
				c.queueMessage(ErrInternalError(msg.Id))
			}
			return
		}
	}

	var result any
	if action.Mutate != nil {
		var err error
		result, err = action.Mutate(req)
		if err != nil {
			// a failed mutation must never produce a broadcast
			switch {
			case errors.Is(err, sql.ErrNoRows):
				c.queueMessage(ErrNotFound(msg.Id))
			case errors.Is(err, errBadPayload):
				c.queueMessage(ErrInvalidMessage(msg.Id))
			default:
				g.log.Printf("%s %s: %v", g.namespace, msg.Command.Name, err)
				c.queueMessage(ErrInternalError(msg.Id))
			}
			return
		}
	}

	// the caller gets its confirmation on the request/response path;
	// fan-out happens after and never blocks or fails the command
	c.queueMessage(NoErrOK(msg.Id, result))

	if action.Personal {
		return
	}

	go g.fanOut(req, action, result)
}

type postCommitHook struct {
	name string
	run  func() error
}

// fanOut runs the post-commit side effects of a successful mutation as
// an ordered hook list. Each hook is isolated: a panic or error in one
// is logged and never reaches the others, let alone the caller.
func (g *Gateway) fanOut(req ActionRequest, action Action, result any) {
	event := NewEvent(action.Event, req.FamilyId, req.User.Id, result, "")

	hooks := []postCommitHook{
		{name: "broadcast", run: func() error {
			g.eventServer.BroadcastToFamily(g.namespace, req.FamilyId, &ServerMessage{
				BaseMessage: BaseMessage{
					Timestamp: Now(),
				},
				Event:      event,
				SkipUserId: req.User.Id,
			})
			return nil
		}},
	}

	if action.Notify != nil {
		family, err := g.db.GetFamilyWithMembers(req.FamilyId)
		if err != nil {
			g.log.Println("GetFamilyWithMembers:", err)
		} else {
			title, body := action.Notify(req, result)
			data := map[string]string{
				"type":      action.Event,
				"family_id": strconv.Itoa(req.FamilyId),
			}

			hooks = append(hooks,
				postCommitHook{name: "ledger", run: func() error {
					return g.notifyMembers(req.User.Id, family.Members, title, body)
				}},
				postCommitHook{name: "push", run: func() error {
					g.pushMembers(req.User.Id, family.Members, title, body, data)
					return nil
				}},
			)
		}
	}

	for _, h := range hooks {
		g.runHook(h)
	}
}

func (g *Gateway) runHook(h postCommitHook) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Printf("%s: %s hook panic: %v", g.namespace, h.name, rec)
		}
	}()

	if err := h.run(); err != nil {
		g.log.Printf("%s: %s hook: %v", g.namespace, h.name, err)
	}
}

func (g *Gateway) notifyMembers(actorId int, members []database.FamilyMember, title, body string) error {
	var errs []error
	for _, m := range members {
		if m.AccountId == actorId {
			continue
		}

		if err := g.notifier.Notify(m.AccountId, title, body); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// pushMembers sends the push copy to members with no live connection.
// Connected members already got the realtime copy.
func (g *Gateway) pushMembers(actorId int, members []database.FamilyMember, title, body string, data map[string]string) {
	for _, m := range members {
		if m.AccountId == actorId || g.eventServer.HasConnections(m.AccountId) {
			continue
		}

		g.push.SendToUser(context.Background(), m.AccountId, title, body, data)
	}
}
