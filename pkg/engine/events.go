package engine

import "github.com/verbalis-ai/verbalis/pkg/core/types"

// Event is an engine notification delivered on Events().
type Event interface {
	engineEventType() string
}

// StatusEvent reports a lifecycle transition.
type StatusEvent struct {
	Status types.SessionStatus
	// Err carries the root cause when Status is error.
	Err error
}

func (e StatusEvent) engineEventType() string { return "status" }

// TranscriptAppendedEvent reports one message appended to the currently
// displayed sequence. Items already rendered never move.
type TranscriptAppendedEvent struct {
	Message types.Message
}

func (e TranscriptAppendedEvent) engineEventType() string { return "transcript_appended" }

// TranscriptReplacedEvent reports that the displayed sequence was swapped
// wholesale: a selection change or a reset. Messages is the new sequence.
type TranscriptReplacedEvent struct {
	Messages []types.Message
}

func (e TranscriptReplacedEvent) engineEventType() string { return "transcript_replaced" }

// SelectionChangedEvent reports a History Selector switch.
type SelectionChangedEvent struct {
	// Archived is empty while the live view is selected.
	Archived string
}

func (e SelectionChangedEvent) engineEventType() string { return "selection_changed" }

// EmotionRecordedEvent reports one classified turn and the updated
// running aggregate.
type EmotionRecordedEvent struct {
	Event     types.EmotionEvent
	Aggregate types.EmotionAggregate
}

func (e EmotionRecordedEvent) engineEventType() string { return "emotion_recorded" }

// DiagnosticEvent surfaces a non-fatal failure (classification, a
// superseded history fetch). It never interrupts transcript delivery.
type DiagnosticEvent struct {
	Op  string
	Err error
}

func (e DiagnosticEvent) engineEventType() string { return "diagnostic" }
