package registry

import (
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
)

type mark int

const (
	unvisited mark = iota
	visiting
	visited
)

// topoSort is a depth-first post-order walk from each start type. Reaching a
// type that is still being visited means a back edge, i.e. a cycle.
func topoSort(start []entity.EntityType, depsOf func(entity.EntityType) []entity.EntityType) ([]entity.EntityType, error) {
	marks := make(map[entity.EntityType]mark)
	var (
		order []entity.EntityType
		path  []entity.EntityType
	)

	var visit func(t entity.EntityType) error
	visit = func(t entity.EntityType) error {
		switch marks[t] {
		case visited:
			return nil
		case visiting:
			cycle := append([]entity.EntityType{}, path...)
			return domainErrors.NewCycleError(append(cycle, t))
		}

		marks[t] = visiting
		path = append(path, t)
		for _, dep := range depsOf(t) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[t] = visited
		order = append(order, t)
		return nil
	}

	for _, t := range start {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	return order, nil
}
