package mobility

import (
	"fmt"

	"github.com/sarchlab/netsim/network"
)

// Layout decides in which direction a grid is filled first.
type Layout int

// Grid layouts.
const (
	RowFirst Layout = iota
	ColumnFirst
)

func (l Layout) String() string {
	switch l {
	case RowFirst:
		return "RowFirst"
	case ColumnFirst:
		return "ColumnFirst"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout converts a layout name.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "RowFirst":
		return RowFirst, nil
	case "ColumnFirst":
		return ColumnFirst, nil
	default:
		return 0, fmt.Errorf("unknown grid layout %q", s)
	}
}

// A GridPositionAllocator hands out positions on a rectangular grid. With
// RowFirst, GridWidth positions fill a row before moving to the next one.
type GridPositionAllocator struct {
	MinX, MinY     float64
	DeltaX, DeltaY float64
	GridWidth      int
	Layout         Layout

	next int
}

// Next returns the next position of the grid.
func (g *GridPositionAllocator) Next() Vector {
	if g.GridWidth <= 0 {
		panic("grid width must be positive")
	}

	major := float64(g.next / g.GridWidth)
	minor := float64(g.next % g.GridWidth)
	g.next++

	if g.Layout == ColumnFirst {
		return Vector{
			X: g.MinX + g.DeltaX*major,
			Y: g.MinY + g.DeltaY*minor,
		}
	}

	return Vector{
		X: g.MinX + g.DeltaX*minor,
		Y: g.MinY + g.DeltaY*major,
	}
}

// A PositionAllocator produces positions one after another.
type PositionAllocator interface {
	Next() Vector
}

// Install places the nodes, in order, at the next positions of the allocator.
func Install(
	model *ConstantPositionModel,
	alloc PositionAllocator,
	nodes ...*network.Node,
) error {
	for _, n := range nodes {
		if err := model.SetPosition(n.ID(), alloc.Next()); err != nil {
			return err
		}
	}

	return nil
}
