// Package mesh is the minimal stand-in for the mesh/geometry external
// collaborator spec.md §6 names: it supplies cell volumes, face areas,
// node coordinates, and local/global index maps, but owns none of the
// AMR/FE-basis machinery spec.md explicitly places out of scope. Nodes
// live in a dense arena indexed by id (Design Notes §9: "raw pointer
// graphs... become indices; ownership is the arena, borrows are indices").
package mesh

// NodeID is a dense index into an Arena's node slice. It is the Go
// replacement for the FVM_Node* pointers of the original solver.
type NodeID int

// RegionID names one mesh partition (a semiconductor/insulator/metal/
// vacuum region).
type RegionID int

// NodeData carries exactly the time-history fields spec.md §6 requires:
// current and previous-step carrier densities, lattice and carrier
// temperatures.
type NodeData struct {
	N, NLast   float64
	P, PLast   float64
	T, TLast   float64 // lattice temperature
	Tn, TnLast float64 // electron temperature
	Tp, TpLast float64 // hole temperature

	Coord  [3]float64 // node coordinates, from the FE basis / shape map
	Volume float64    // control-volume size, from the finite-volume kernel
	Doping float64    // net doping Nd-Na, cm^-3 (positive = n-type)
}

// Node is one finite-volume degree-of-freedom anchor.
type Node struct {
	ID       NodeID
	Region   RegionID
	LocalID  int // position within the region's on-processor node list
	Data     NodeData
	Neighbors []NodeID
}

// Arena owns every node of every region on this rank. Regions and
// boundary conditions only ever hold NodeIDs into it; they never retain a
// *Node across an assembly boundary (spec.md §3 Ownership).
type Arena struct {
	nodes       []Node
	byRegion    map[RegionID][]NodeID
	faceAreas   map[[2]NodeID]float64
	cellVolumes map[NodeID]float64
}

func NewArena() *Arena {
	return &Arena{
		byRegion:    make(map[RegionID][]NodeID),
		faceAreas:   make(map[[2]NodeID]float64),
		cellVolumes: make(map[NodeID]float64),
	}
}

// AddNode appends a node to the arena under the given region, returning
// its dense id. LocalID is assigned as the node's position within the
// region's on-processor list, matching the "contiguous variable blocks
// per node in declared order" contract of the Index Map (spec.md §4.1).
func (a *Arena) AddNode(region RegionID, data NodeData) NodeID {
	id := NodeID(len(a.nodes))
	localID := len(a.byRegion[region])
	a.nodes = append(a.nodes, Node{ID: id, Region: region, LocalID: localID, Data: data})
	a.byRegion[region] = append(a.byRegion[region], id)
	return id
}

// Connect records an undirected neighbour edge with the given shared face
// area (finite-volume neighbour graph).
func (a *Arena) Connect(u, v NodeID, faceArea float64) {
	a.nodes[u].Neighbors = append(a.nodes[u].Neighbors, v)
	a.nodes[v].Neighbors = append(a.nodes[v].Neighbors, u)
	a.faceAreas[[2]NodeID{u, v}] = faceArea
	a.faceAreas[[2]NodeID{v, u}] = faceArea
}

// SetVolume stores the control-volume size used by time-derivative terms.
func (a *Arena) SetVolume(n NodeID, vol float64) {
	a.cellVolumes[n] = vol
	a.nodes[n].Data.Volume = vol
}

func (a *Arena) FaceArea(u, v NodeID) float64 { return a.faceAreas[[2]NodeID{u, v}] }

func (a *Arena) Node(id NodeID) *Node { return &a.nodes[id] }

func (a *Arena) NumNodes() int { return len(a.nodes) }

// OnProcessorNodes returns the ids of every node owned by region, in
// declared local-index order (spec.md §6:
// on_processor_nodes_begin/end(region)).
func (a *Arena) OnProcessorNodes(region RegionID) []NodeID {
	return a.byRegion[region]
}

// Neighbors returns the adjacency list for a node (finite-volume
// neighbour graph, Design Notes §9).
func (a *Arena) Neighbors(id NodeID) []NodeID {
	return a.nodes[id].Neighbors
}

// ActiveElements is a placeholder iterator over mesh elements; this arena
// models a pure finite-volume node graph and has no element-level view,
// so it returns nothing. Kept so callers that iterate elements (hanging
// node handling at non-conforming refinement boundaries) compile against
// the same surface spec.md §6 names; AMR/FE basis construction itself is
// explicitly out of scope.
func (a *Arena) ActiveElements() []NodeID { return nil }
