package scene

import (
	"math"
	"sort"
	"time"

	"github.com/soerenfi/raytracing/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis

	// The BVH builder will not attempt to calculate split candidates
	// if the node bbox along an axis is less than this threshold.
	minSideLength float32 = 1e-5

	// The number of split candidates evaluated per axis.
	splitCandidates = 32

	// Max depth of the traversal stack.
	maxTraversalDepth = 64
)

// The BoundedVolume interface is implemented by all items that can be
// partitioned by the bvh builder.
type BoundedVolume interface {
	BBox() Bounds
	Center() types.Vec3
}

// A bvh node. Leaves have Count > 0 and reference Count entries of the item
// list starting at First; inner nodes reference their two children.
type BvhNode struct {
	Bounds Bounds

	Left, Right int32
	First       int32
	Count       int32
}

func (n *BvhNode) IsLeaf() bool {
	return n.Count > 0
}

// A bounding volume hierarchy over a list of items.
type Bvh struct {
	Nodes []BvhNode

	// Indices into the partitioned work list ordered by leaf.
	Items []int

	Depth int
}

type splitScore struct {
	axis       Axis
	splitPoint float32

	leftCount, rightCount int
	score                 float32
}

type builder struct {
	bvh          *Bvh
	workList     []BoundedVolume
	minLeafItems int
	scoreChan    chan splitScore
}

// Construct a BVH from a set of bounded volumes. Splits are scored with the
// surface area heuristic:
// score = left count * left bbox area + right count * right bbox area.
//
// Work lists with at most minLeafItems items always form a leaf.
func BuildBvh(workList []BoundedVolume, minLeafItems int) *Bvh {
	if minLeafItems < 1 {
		minLeafItems = 1
	}
	b := &builder{
		bvh:          &Bvh{},
		workList:     workList,
		minLeafItems: minLeafItems,
		scoreChan:    make(chan splitScore),
	}

	start := time.Now()
	if len(workList) != 0 {
		items := make([]int, len(workList))
		for i := range items {
			items[i] = i
		}
		b.partition(items, 0)
	}
	logger.Debugf(
		"BVH build time: %d ms, items: %d, maxDepth: %d, nodes: %d",
		time.Since(start).Nanoseconds()/1e6,
		len(workList), b.bvh.Depth, len(b.bvh.Nodes),
	)
	return b.bvh
}

// Partition the item list and return the node index.
func (b *builder) partition(items []int, depth int) int32 {
	if depth > b.bvh.Depth {
		b.bvh.Depth = depth
	}

	node := BvhNode{Bounds: EmptyBounds()}
	for _, item := range items {
		node.Bounds = node.Bounds.Union(b.workList[item].BBox())
	}

	// Do we have enough items for partitioning? If not create a leaf
	if len(items) <= b.minLeafItems || depth >= maxTraversalDepth-2 {
		return b.createLeaf(node, items)
	}

	bestScore := b.scorePartition(items)
	var bestSplit *splitScore

	// Run axis split tests in parallel
	pendingScores := 0
	side := node.Bounds.Size()
	for axis := XAxis; axis <= ZAxis; axis++ {
		// Skip axis if bbox dimension is too small
		if side[axis] < minSideLength {
			continue
		}

		splitStep := side[axis] / splitCandidates
		for step := 1; step < splitCandidates; step++ {
			pendingScores++
			go func(axis Axis, splitPoint float32) {
				lCount, rCount, score := b.scoreSplit(items, axis, splitPoint)
				b.scoreChan <- splitScore{
					axis:       axis,
					splitPoint: splitPoint,

					leftCount:  lCount,
					rightCount: rCount,
					score:      score,
				}
			}(axis, node.Bounds.Min[axis]+float32(step)*splitStep)
		}
	}

	// Process all scores and pick the best split
	for ; pendingScores > 0; pendingScores-- {
		candidate := <-b.scoreChan
		if candidate.score < bestScore || (bestSplit != nil && candidate.score == bestScore && lessSplit(candidate, *bestSplit)) {
			bestScore = candidate.score
			bestSplit = &candidate
		}
	}

	// If we can't find a split that improves the current node score create a leaf
	if bestSplit == nil {
		return b.createLeaf(node, items)
	}

	left := make([]int, 0, bestSplit.leftCount)
	right := make([]int, 0, bestSplit.rightCount)
	for _, item := range items {
		if b.workList[item].Center()[bestSplit.axis] < bestSplit.splitPoint {
			left = append(left, item)
		} else {
			right = append(right, item)
		}
	}

	nodeIndex := len(b.bvh.Nodes)
	b.bvh.Nodes = append(b.bvh.Nodes, node)

	leftIndex := b.partition(left, depth+1)
	rightIndex := b.partition(right, depth+1)
	b.bvh.Nodes[nodeIndex].Left = leftIndex
	b.bvh.Nodes[nodeIndex].Right = rightIndex

	return int32(nodeIndex)
}

// Order equally scored splits so the build is deterministic.
func lessSplit(a, b splitScore) bool {
	if a.axis != b.axis {
		return a.axis < b.axis
	}
	return a.splitPoint < b.splitPoint
}

func (b *builder) createLeaf(node BvhNode, items []int) int32 {
	sorted := append([]int(nil), items...)
	sort.Ints(sorted)

	node.First = int32(len(b.bvh.Items))
	node.Count = int32(len(sorted))
	b.bvh.Items = append(b.bvh.Items, sorted...)

	nodeIndex := len(b.bvh.Nodes)
	b.bvh.Nodes = append(b.bvh.Nodes, node)
	return int32(nodeIndex)
}

// Score a split. Splits that generate empty partitions get the worst
// possible score.
func (b *builder) scoreSplit(items []int, axis Axis, splitPoint float32) (leftCount, rightCount int, score float32) {
	lBounds, rBounds := EmptyBounds(), EmptyBounds()
	for _, item := range items {
		vol := b.workList[item]
		if vol.Center()[axis] < splitPoint {
			leftCount++
			lBounds = lBounds.Union(vol.BBox())
		} else {
			rightCount++
			rBounds = rBounds.Union(vol.BBox())
		}
	}

	if leftCount == 0 || rightCount == 0 {
		return leftCount, rightCount, math.MaxFloat32
	}

	return leftCount, rightCount, float32(leftCount)*halfArea(lBounds) + float32(rightCount)*halfArea(rBounds)
}

// Calculate score for an unsplit item list: count * bbox area.
func (b *builder) scorePartition(items []int) float32 {
	bounds := EmptyBounds()
	for _, item := range items {
		bounds = bounds.Union(b.workList[item].BBox())
	}
	return float32(len(items)) * halfArea(bounds)
}

func halfArea(b Bounds) float32 {
	side := b.Size()
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}

// Walk the nodes intersected by a ray. The visit callback is invoked for
// every item of an intersected leaf and returns the new closest distance and
// whether traversal should stop.
func (bvh *Bvh) Traverse(origin, dir types.Vec3, tMax float32, visit func(item int, tMax float32) (float32, bool)) {
	if len(bvh.Nodes) == 0 {
		return
	}

	invDir := types.XYZ(1/dir[0], 1/dir[1], 1/dir[2])

	var stack [maxTraversalDepth]int32
	stackSize := 1
	for stackSize > 0 {
		stackSize--
		node := &bvh.Nodes[stack[stackSize]]
		if _, hit := node.Bounds.Intersect(origin, invDir, tMax); !hit {
			continue
		}

		if node.IsLeaf() {
			for _, item := range bvh.Items[node.First : node.First+node.Count] {
				var stop bool
				if tMax, stop = visit(item, tMax); stop {
					return
				}
			}
			continue
		}

		stack[stackSize] = node.Right
		stack[stackSize+1] = node.Left
		stackSize += 2
	}
}
