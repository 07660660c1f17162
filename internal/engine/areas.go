package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/cadence/internal/model"
)

func (e *Engine) CreateArea(ctx context.Context, name, color string) (*model.Area, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", CodeRequired, "area name is required")
	}

	var area *model.Area
	err := e.write(ctx, func(s stores) error {
		var err error
		area, err = s.areas.Create(ctx, e.ids.NewID(), name, strings.TrimSpace(color), e.clock.Now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create area: %w", err)
	}
	return area, nil
}

func (e *Engine) ListAreas(ctx context.Context) ([]model.Area, error) {
	return e.stores.areas.List(ctx)
}

// checkArea reports a missing area as not found instead of letting the
// foreign key reject the insert.
func checkArea(ctx context.Context, s stores, areaID *string) error {
	if areaID == nil {
		return nil
	}
	a, err := s.areas.GetByID(ctx, *areaID)
	if err != nil {
		return err
	}
	if a == nil {
		return notFound("area", *areaID)
	}
	return nil
}
