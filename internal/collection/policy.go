package collection

import (
	"slices"

	"github.com/vecora/vecora/model"
)

// SegmentInfo holds the per-segment stats a policy decides on.
type SegmentInfo struct {
	ID         model.SegmentID
	Points     int
	Appendable bool
}

// OptimizationTask describes one merge unit of work: build a single new
// segment out of the union of the sources and swap it in.
type OptimizationTask struct {
	Sources []model.SegmentID
}

// OptimizerPolicy decides which segments should be merged.
// Policies only propose; the engine enforces that no two in-flight tasks
// share a source segment.
type OptimizerPolicy interface {
	// Name identifies the policy in logs.
	Name() string

	// Pick selects merge tasks from the given segments.
	// Returns nil if no optimization is needed.
	Pick(segments []SegmentInfo) []OptimizationTask
}

// MergeSmallPolicy merges runs of small segments into bigger ones.
// A segment is a candidate when it holds fewer than MaxPoints points;
// candidates are grouped oldest-first into tasks of up to MaxSources
// sources, at most MaxTasks tasks per cycle.
type MergeSmallPolicy struct {
	// MaxPoints is the size threshold under which a segment is considered
	// small. If 0, defaults to 10000.
	MaxPoints int

	// MaxSources caps the number of sources per task. If 0, defaults to 8.
	MaxSources int

	// MaxTasks caps the tasks proposed per cycle. If 0, defaults to 2.
	MaxTasks int
}

// Name implements OptimizerPolicy.
func (p *MergeSmallPolicy) Name() string { return "merge_small" }

// Pick implements OptimizerPolicy.
func (p *MergeSmallPolicy) Pick(segments []SegmentInfo) []OptimizationTask {
	maxPoints := p.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 10000
	}
	maxSources := p.MaxSources
	if maxSources <= 0 {
		maxSources = 8
	}
	maxTasks := p.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 2
	}

	var small []SegmentInfo
	for _, s := range segments {
		// Appendable segments stay out: they are live write targets.
		if !s.Appendable && s.Points < maxPoints {
			small = append(small, s)
		}
	}
	if len(small) < 2 {
		return nil
	}

	// Oldest first, id as age proxy.
	slices.SortFunc(small, func(a, b SegmentInfo) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	var tasks []OptimizationTask
	for len(small) >= 2 && len(tasks) < maxTasks {
		n := min(maxSources, len(small))
		sources := make([]model.SegmentID, n)
		for i := 0; i < n; i++ {
			sources[i] = small[i].ID
		}
		small = small[n:]
		tasks = append(tasks, OptimizationTask{Sources: sources})
	}
	return tasks
}

// RolloverPolicy seals oversized appendable segments: each appendable
// segment holding at least MaxPoints points becomes a single-source task,
// replaced by an optimized read-only copy. Writes that race the rebuild are
// reconciled at swap time; the update path bootstraps a fresh appendable
// segment on demand.
type RolloverPolicy struct {
	// MaxPoints is the size at which an appendable segment is sealed.
	// If 0, defaults to 10000.
	MaxPoints int
}

// Name implements OptimizerPolicy.
func (p *RolloverPolicy) Name() string { return "rollover" }

// Pick implements OptimizerPolicy.
func (p *RolloverPolicy) Pick(segments []SegmentInfo) []OptimizationTask {
	maxPoints := p.MaxPoints
	if maxPoints <= 0 {
		maxPoints = 10000
	}

	var tasks []OptimizationTask
	for _, s := range segments {
		if s.Appendable && s.Points >= maxPoints {
			tasks = append(tasks, OptimizationTask{Sources: []model.SegmentID{s.ID}})
		}
	}
	return tasks
}

// MergeOldestPolicy bounds the total segment count by age: when more than
// MaxSegments read-only segments exist, the MergeFactor oldest ones are
// merged into one.
type MergeOldestPolicy struct {
	// MaxSegments is the count above which merging starts. If 0, defaults to 8.
	MaxSegments int

	// MergeFactor is the number of oldest segments merged per task.
	// If 0, defaults to 4.
	MergeFactor int
}

// Name implements OptimizerPolicy.
func (p *MergeOldestPolicy) Name() string { return "merge_oldest" }

// Pick implements OptimizerPolicy.
func (p *MergeOldestPolicy) Pick(segments []SegmentInfo) []OptimizationTask {
	maxSegments := p.MaxSegments
	if maxSegments <= 0 {
		maxSegments = 8
	}
	factor := p.MergeFactor
	if factor <= 0 {
		factor = 4
	}

	var readOnly []SegmentInfo
	for _, s := range segments {
		if !s.Appendable {
			readOnly = append(readOnly, s)
		}
	}
	if len(readOnly) <= maxSegments {
		return nil
	}

	slices.SortFunc(readOnly, func(a, b SegmentInfo) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	n := min(factor, len(readOnly))
	if n < 2 {
		return nil
	}
	sources := make([]model.SegmentID, n)
	for i := 0; i < n; i++ {
		sources[i] = readOnly[i].ID
	}
	return []OptimizationTask{{Sources: sources}}
}
