package detect

import (
	"sort"

	"github.com/sentry-ai/go-sentry/images"
)

// applyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Detections are sorted by descending score; each surviving anchor
// suppresses every later box whose IoU with it exceeds the threshold.
func applyGreedyNMS(detections []Detection, iouThreshold float32) []Detection {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	filtered := make([]Detection, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			iou := images.CalculateIoU(
				images.FromImageRect(anchor.Box),
				images.FromImageRect(detections[j].Box),
			)
			if iou > iouThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
