package peering

import (
	"context"
	"errors"
	"testing"

	"github.com/HerbHall/peeringmanager/pkg/models"
)

func TestListObjects(t *testing.T) {
	env := newTestModule(t)
	ctx := context.Background()
	for i := range 60 {
		mustAS(t, env.m.store, int64(64500+i), "AS")
	}

	got, err := env.m.ListObjects(ctx, models.ContentTypeAutonomousSystem)
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	list, ok := got.([]models.AutonomousSystem)
	if !ok {
		t.Fatalf("ListObjects returned %T", got)
	}
	if len(list) != 60 {
		t.Errorf("len = %d, want every object past the default page size", len(list))
	}

	if _, err := env.m.ListObjects(ctx, models.ContentTypeJobResult); !errors.Is(err, ErrInvalid) {
		t.Errorf("job results error = %v, want ErrInvalid", err)
	}
}
