// Package events defines the typed audio event contract and the synchronous
// bus that delivers it.
//
// Semantics used across the package:
//
//   - Session: one continuous stretch of playback, from the first queued
//     chunk until the queue drains or an interrupt clears it.
//   - Frame: one fixed-size block of capture samples.
//   - Previous: the pipeline state in force before the transition the event
//     reports.
//
// recording events
//
//   - RecordingStart (recording_start): microphone capture began.
//   - RecordingStop (recording_stop): microphone capture ended.
//   - RecordingData (recording_data): one captured frame with its measured
//     energy and voice decision, emitted for every frame while capturing.
//
// playback events
//
//   - PlaybackStart (playback_start): a playback session began; emitted once
//     per session when its first chunk is queued.
//   - PlaybackStop (playback_stop): the session was interrupted; carries the
//     reason and the state playback was in.
//   - PlaybackEnd (playback_end): the session's queue drained naturally.
//
// state events
//
//   - StateChange (audio_state_change): the pipeline moved between states, or
//     the mute flag was toggled (Previous equals Current in that case).
//   - AudioError (audio_error): a contained failure, such as a chunk that
//     failed to decode or a frame that failed to render.
package events
