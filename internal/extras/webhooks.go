package extras

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/peeringmanager/pkg/models"
	"github.com/HerbHall/peeringmanager/pkg/plugin"
)

// Deliverer sends one object change to one webhook.
type Deliverer interface {
	Deliver(ctx context.Context, hook *models.Webhook, change models.ObjectChange) error
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: models.TopicObjectAll, Handler: m.handleObjectChange},
	}
}

// handleObjectChange delivers the change to every enabled webhook
// registered for its content type and action. Delivery failures are
// logged by the dispatcher and do not affect the other webhooks.
func (m *Module) handleObjectChange(ctx context.Context, event plugin.Event) {
	change, ok := event.Payload.(models.ObjectChange)
	if !ok || m.store == nil || m.deliverer == nil {
		return
	}
	hooks, err := m.store.EnabledWebhooks(ctx)
	if err != nil {
		m.logger.Error("list webhooks", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(m.cfg.WebhookWorkers)
	for i := range hooks {
		hook := &hooks[i]
		if !hook.Fires(change.ContentType, change.Action) {
			continue
		}
		g.Go(func() error {
			_ = m.deliverer.Deliver(gctx, hook, change)
			return nil
		})
	}
	_ = g.Wait()
}
