// Package frames converts a sparse per-agent trajectory set into a dense,
// frame-indexed table ready for paced streaming.
//
// A FrameTable holds one Frame per sampled timestamp between the recording's
// start and end, spaced BaseInterval*FrameStep milliseconds apart. Frame
// indices are contiguous from 0 and a frame with no agents still takes its
// slot, so clients can play back at a deterministic rate.
//
// An optional Admission filter drops agents farther than a radius from the
// centroid of the agents active at the first timestamp.
package frames
