package optimizer

import (
	"fmt"

	"github.com/raykavin/calibrator/pkg/core"
)

// GridSize returns the number of combinations the grid expands to
func GridSize(grid []core.Parameter) int {
	if len(grid) == 0 {
		return 0
	}
	size := 1
	for _, param := range grid {
		size *= len(param.Values)
	}
	return size
}

// GenerateParameterSets expands the cartesian product of the grid values on
// top of base. The last parameter varies fastest. A positive limit stops the
// expansion after that many combinations.
func GenerateParameterSets(base core.ParameterSet, grid []core.Parameter, limit int) ([]core.ParameterSet, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty grid", core.ErrInvalidParameter)
	}

	for _, param := range grid {
		if len(param.Values) == 0 {
			return nil, fmt.Errorf("%w: parameter %s has no values", core.ErrInvalidParameter, param.Name)
		}
		for _, value := range param.Values {
			if _, err := base.WithValue(param.Name, value); err != nil {
				return nil, err
			}
		}
	}

	total := GridSize(grid)
	if limit > 0 && limit < total {
		total = limit
	}

	sets := make([]core.ParameterSet, 0, total)
	indexes := make([]int, len(grid))
	for len(sets) < total {
		set := base
		for i, param := range grid {
			// values were validated above
			set, _ = set.WithValue(param.Name, param.Values[indexes[i]])
		}
		sets = append(sets, set)

		// odometer increment, rightmost first
		for i := len(grid) - 1; i >= 0; i-- {
			indexes[i]++
			if indexes[i] < len(grid[i].Values) {
				break
			}
			indexes[i] = 0
		}
	}

	return sets, nil
}
