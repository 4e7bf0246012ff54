package extras

import (
	"context"
	"maps"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

// ResolveContext returns the merged data of the active config contexts
// assigned to the object. Contexts are applied in ascending weight order,
// ties by name, and later data overrides earlier keys recursively.
func (m *Module) ResolveContext(ctx context.Context, ct models.ContentType, id int64) (map[string]any, error) {
	if m.store == nil {
		return map[string]any{}, nil
	}
	assigned, err := m.store.AssignedContexts(ctx, ct, id)
	if err != nil {
		return nil, err
	}
	return MergeContexts(assigned), nil
}

// MergeContexts deep merges the data of contexts in order.
func MergeContexts(contexts []models.ConfigContext) map[string]any {
	out := map[string]any{}
	for _, c := range contexts {
		deepMerge(out, c.Data)
	}
	return out
}

// deepMerge copies src into dst. Nested maps present on both sides are
// merged; any other value from src replaces the one in dst.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		cur, ok := dst[k].(map[string]any)
		if !ok {
			cur = make(map[string]any, len(sub))
		} else {
			cur = maps.Clone(cur)
		}
		deepMerge(cur, sub)
		dst[k] = cur
	}
}
