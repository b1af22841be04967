package event

import "math"

// TicksPerSecond is the timecode resolution.
const TicksPerSecond = 1_000_000

// Quantise rounds tc to the nearest frame boundary at fps.
func Quantise(tc int64, fps float64) int64 {
	if fps <= 0 {
		return tc
	}

	frames := math.Round(float64(tc) * fps / TicksPerSecond)

	return int64(math.Round(frames * TicksPerSecond / fps))
}

// FrameDuration returns the length of one frame in ticks.
func FrameDuration(fps float64) int64 {
	if fps <= 0 {
		return 0
	}

	return int64(math.Round(TicksPerSecond / fps))
}

// FrameTC returns the quantised timecode of frame index n (0-based).
func FrameTC(n int64, fps float64) int64 {
	if fps <= 0 {
		return 0
	}

	return int64(math.Round(float64(n) * TicksPerSecond / fps))
}

// FrameIndex returns the 0-based frame index nearest to tc.
func FrameIndex(tc int64, fps float64) int64 {
	return int64(math.Round(float64(tc) * fps / TicksPerSecond))
}

// CountResampledFrames scales a frame count from one rate to another.
func CountResampledFrames(frames int64, fromFPS, toFPS float64) int64 {
	if frames <= 0 || fromFPS <= 0 || toFPS <= 0 {
		return frames
	}

	n := int64(math.Round(float64(frames) * toFPS / fromFPS))
	if n < 1 {
		n = 1
	}

	return n
}

// roundVelocity keeps four decimal places.
func roundVelocity(v float64) float64 {
	return math.Round(v*10000) / 10000
}
