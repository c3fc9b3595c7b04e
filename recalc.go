package xlcalc

import (
	"fmt"
	"maps"
	"slices"
)

// recompute settles every dirty cell. Cells whose formula could not be built
// and cells that reach a cycle are settled first and force their dependents
// into the same error. The rest are evaluated in dependency order. The
// returned error is an internal consistency failure, never a formula error.
func (w *Workbook) recompute() error {
	if w.busy {
		return ErrReentrant
	}
	w.busy = true
	defer func() { w.busy = false }()

	var settled []CellID
	ids := slices.Sorted(maps.Keys(w.dirty))
	w.log.Debug("recalculation started", "dirty", len(ids))

	// Structural failures: unresolved references, compile errors, cycles.
	forced := make(map[CellID]bool)
	cycles := 0
	for _, id := range ids {
		if forced[id] {
			continue
		}
		c := w.cells[id]
		var fe *FormulaError
		switch {
		case c.buildErr != nil:
			fe = c.buildErr
		case c.kind == KindExpression && w.detectCycle(id):
			fe = newFormulaError(CircularReference, c.Ref().String(), nil)
			cycles++
		default:
			continue
		}
		forced[id] = true
		w.settleError(c, fe)
		settled = append(settled, id)
		settled = append(settled, w.fanOut(c, fe.Kind, forced)...)
	}
	if cycles > 0 {
		w.log.Debug("circular references found", "cells", cycles)
	}

	order, err := w.evaluationOrder()
	if err != nil {
		w.log.Error("recalculation aborted", "error", err)
		return err
	}

	for _, id := range order {
		c := w.cells[id]
		c.state = StateEvaluating
		value, fe := w.evaluateCell(c)
		delete(w.dirty, id)
		if fe != nil {
			w.settleError(c, fe)
		} else {
			c.value = value
			c.err = nil
			c.state = StateClean
		}
		settled = append(settled, id)
	}

	if len(w.dirty) != 0 {
		err := fmt.Errorf("%d cells still dirty after recalculation: %w", len(w.dirty), ErrInternal)
		w.log.Error("recalculation incomplete", "error", err)
		return err
	}
	w.log.Debug("recalculation finished", "settled", len(settled))
	w.notify(settled)
	return nil
}

func (w *Workbook) settleError(c *Cell, fe *FormulaError) {
	c.err = fe
	c.state = StateError
	delete(w.dirty, c.id)
}

// fanOut forces every transitive dependent of c into kind. Dependents
// already holding that kind are left alone, which also stops the walk.
func (w *Workbook) fanOut(c *Cell, kind ErrorKind, forced map[CellID]bool) []CellID {
	var touched []CellID
	queue := w.sortByPosition(slices.Collect(maps.Keys(c.dependents)))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		d := w.cells[id]
		if forced[id] || (d.state == StateError && d.err.Kind == kind) {
			continue
		}
		forced[id] = true
		w.settleError(d, newFormulaError(kind, c.Ref().String(), nil))
		touched = append(touched, id)
		queue = append(queue, w.sortByPosition(slices.Collect(maps.Keys(d.dependents)))...)
	}
	return touched
}

// evaluationOrder sorts the remaining dirty cells so that every cell comes
// after the dirty cells it reads (Kahn's algorithm on edges inside the dirty
// set).
func (w *Workbook) evaluationOrder() ([]CellID, error) {
	pending := slices.Sorted(maps.Keys(w.dirty))
	indegree := make(map[CellID]int, len(pending))
	for _, id := range pending {
		indegree[id] = 0
	}
	for _, id := range pending {
		for _, d := range w.cells[id].deps {
			if _, ok := indegree[d.Cell]; ok {
				indegree[id]++
			}
		}
	}

	var queue []CellID
	for _, id := range pending {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]CellID, 0, len(pending))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range slices.Sorted(maps.Keys(w.cells[id].dependents)) {
			if _, ok := indegree[dep]; !ok {
				continue
			}
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) < len(pending) {
		return nil, fmt.Errorf("evaluation order covers %d of %d dirty cells: %w", len(order), len(pending), ErrInternal)
	}
	return order, nil
}

// evaluateCell computes the value of a dirty cell whose dependencies are
// settled. An errored dependency passes its kind on without evaluating.
func (w *Workbook) evaluateCell(c *Cell) (any, *FormulaError) {
	switch c.kind {
	case KindEmpty:
		return nil, nil
	case KindNumber, KindString:
		return c.value, nil
	}
	for _, d := range c.deps {
		dep := w.cells[d.Cell]
		if dep.state == StateError && dep.err != nil {
			return nil, newFormulaError(dep.err.Kind, d.Ref, nil)
		}
	}
	return w.evaluate(c)
}

func (w *Workbook) notify(settled []CellID) {
	if len(w.opts.listeners) == 0 {
		return
	}
	for _, id := range settled {
		c := w.cells[id]
		ev := CellEvent{Ref: c.Ref(), Formula: c.formula, Value: c.Value()}
		for _, l := range w.opts.listeners {
			l.CellChanged(ev)
		}
	}
}
