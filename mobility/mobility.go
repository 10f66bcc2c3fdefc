// Package mobility keeps track of where nodes are.
package mobility

import (
	"errors"
	"fmt"
	"math"

	"github.com/sarchlab/netsim/network"
)

// ErrPositionAlreadySet is returned when setting the position of a node twice.
var ErrPositionAlreadySet = errors.New("position already set")

// ErrPositionUnknown is returned when querying a node without a position.
var ErrPositionUnknown = errors.New("position unknown")

// A Vector is a position in meters.
type Vector struct {
	X, Y, Z float64
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Vector) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z

	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// A ConstantPositionModel holds nodes that never move.
type ConstantPositionModel struct {
	positions map[network.NodeID]Vector
}

// NewConstantPositionModel creates an empty model.
func NewConstantPositionModel() *ConstantPositionModel {
	return &ConstantPositionModel{
		positions: make(map[network.NodeID]Vector),
	}
}

// SetPosition places a node. A node can only be placed once.
func (m *ConstantPositionModel) SetPosition(
	node network.NodeID,
	pos Vector,
) error {
	if _, found := m.positions[node]; found {
		return fmt.Errorf("%w: node %d", ErrPositionAlreadySet, node)
	}

	m.positions[node] = pos

	return nil
}

// PositionOf returns the position of a node.
func (m *ConstantPositionModel) PositionOf(node network.NodeID) (Vector, error) {
	pos, found := m.positions[node]
	if !found {
		return Vector{}, fmt.Errorf("%w: node %d", ErrPositionUnknown, node)
	}

	return pos, nil
}

// Len returns the number of placed nodes.
func (m *ConstantPositionModel) Len() int {
	return len(m.positions)
}
