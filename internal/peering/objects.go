package peering

import (
	"context"
	"fmt"

	"github.com/HerbHall/peeringmanager/internal/query"
	"github.com/HerbHall/peeringmanager/pkg/models"
)

// everything selects all rows in store list order.
var everything = query.Params{Where: "1=1", Limit: -1}

// ListObjects returns every object of ct, in list order, for export
// templates.
func (m *Module) ListObjects(ctx context.Context, ct models.ContentType) (any, error) {
	if m.store == nil {
		return nil, fmt.Errorf("peering store not available")
	}
	var (
		list any
		err  error
	)
	switch ct {
	case models.ContentTypeAutonomousSystem:
		list, _, err = m.store.ListAutonomousSystems(ctx, everything)
	case models.ContentTypeInternetExchange:
		list, _, err = m.store.ListInternetExchanges(ctx, everything)
	case models.ContentTypeRouter:
		list, _, err = m.store.ListRouters(ctx, everything)
	case models.ContentTypePeeringSession:
		list, _, err = m.store.ListPeeringSessions(ctx, everything)
	case models.ContentTypeCommunity:
		list, _, err = m.store.ListCommunities(ctx, everything)
	case models.ContentTypeConfigurationTemplate:
		list, _, err = m.store.ListConfigurationTemplates(ctx, everything)
	default:
		return nil, fmt.Errorf("%w: %s objects cannot be exported", ErrInvalid, ct)
	}
	return list, err
}
