// Package events moves audit records and live order updates off the request
// path. Handlers publish; actors persist to the audit store and push to the
// admin feed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	ProductCreated     = "product.created"
	ProductUpdated     = "product.updated"
	ProductDeleted     = "product.deleted"
	CategoryCreated    = "category.created"
	ReviewCreated      = "review.created"
)

type Event struct {
	Action   string                 `json:"type"`
	EntityID string                 `json:"entityId"`
	ActorID  string                 `json:"actorId,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	At       time.Time              `json:"at"`
}

func (e *Event) isOrder() bool {
	return strings.HasPrefix(e.Action, "order.")
}

type auditActor struct {
	store   repository.AuditStore
	service string
	logger  *zap.Logger
}

func (a *auditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := a.store.CreateAuditLog(c, &repository.AuditLog{
			Service:   a.service,
			Action:    msg.Action,
			EntityID:  msg.EntityID,
			ActorID:   msg.ActorID,
			Data:      bson.M(msg.Data),
			CreatedAt: msg.At,
		})
		if err != nil {
			a.logger.Error("Failed to write audit log",
				zap.String("action", msg.Action),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopped:
		a.logger.Info("Audit actor stopped")
	}
}

type feedActor struct {
	hub    *Hub
	logger *zap.Logger
}

func (a *feedActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		data, err := json.Marshal(msg)
		if err != nil {
			a.logger.Error("Failed to encode feed event", zap.Error(err))
			return
		}
		a.hub.Broadcast(data)

	case *actor.Started:
		a.logger.Info("Feed actor started")
	}
}

// Dispatcher owns the actor system. Publish never blocks the caller.
type Dispatcher struct {
	system *actor.ActorSystem
	audit  *actor.PID
	feed   *actor.PID
	logger *zap.Logger
}

func NewDispatcher(store repository.AuditStore, hub *Hub, service string, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()

	auditProps := actor.PropsFromProducer(func() actor.Actor {
		return &auditActor{store: store, service: service, logger: logger.Named("audit-actor")}
	})
	auditPid, err := system.Root.SpawnNamed(auditProps, "audit-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}

	feedProps := actor.PropsFromProducer(func() actor.Actor {
		return &feedActor{hub: hub, logger: logger.Named("feed-actor")}
	})
	feedPid, err := system.Root.SpawnNamed(feedProps, "feed-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn feed actor: %w", err)
	}

	return &Dispatcher{system: system, audit: auditPid, feed: feedPid, logger: logger}, nil
}

func (d *Dispatcher) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	d.system.Root.Send(d.audit, &ev)
	if ev.isOrder() {
		d.system.Root.Send(d.feed, &ev)
	}
}

// Stop lets both actors drain their mailboxes, then stops them.
func (d *Dispatcher) Stop() {
	for _, pid := range []*actor.PID{d.audit, d.feed} {
		if err := d.system.Root.PoisonFuture(pid).Wait(); err != nil {
			d.logger.Warn("Actor did not stop cleanly", zap.String("pid", pid.Id), zap.Error(err))
		}
	}
}
