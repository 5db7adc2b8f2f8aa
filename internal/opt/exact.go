package opt

import (
	"context"
	"math"
)

// exact picks one candidate per risk so that total cost is minimal, subject
// to the per-train hold budget. Depth-first branch and bound over the fixed
// menu order with strict improvement keeps the result deterministic; an
// admissible bound from per-risk minimum costs prunes the tree. The context
// deadline is checked at every node so a blown budget surfaces as
// ErrSolverTimeout quickly, whatever the tree size.
func (p *proposer) exact(ctx context.Context) ([]candidate, error) {
	n := len(p.menus)
	suffixMin := make([]float64, n+1)
	for i := n - 1; i >= 0; i-- {
		m := p.menus[i][0].cost
		for _, c := range p.menus[i][1:] {
			if c.cost < m {
				m = c.cost
			}
		}
		suffixMin[i] = suffixMin[i+1] + m
	}

	best := make([]int, 0, n)
	bestCost := math.Inf(1)
	found := false
	cur := make([]int, 0, n)
	holds := make(map[string]int)

	var walk func(idx int, cost float64) error
	walk = func(idx int, cost float64) error {
		if ctx.Err() != nil {
			return ErrSolverTimeout
		}
		if found && cost+suffixMin[idx] >= bestCost {
			return nil
		}
		if idx == n {
			bestCost = cost
			best = append(best[:0], cur...)
			found = true
			return nil
		}
		for ci, c := range p.menus[idx] {
			isHold := c.action.Type == ActionHold
			if isHold && holds[c.action.TrainID] >= p.cfg.MaxHoldsPerTrain {
				continue
			}
			if isHold {
				holds[c.action.TrainID]++
			}
			cur = append(cur, ci)
			err := walk(idx+1, cost+c.cost)
			cur = cur[:len(cur)-1]
			if isHold {
				holds[c.action.TrainID]--
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, 0); err != nil {
		return nil, err
	}

	out := make([]candidate, n)
	for i, ci := range best {
		out[i] = p.menus[i][ci]
	}
	return out, nil
}
