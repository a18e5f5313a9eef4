package types

import "time"

// Emotion is a classifier output category.
type Emotion string

const (
	EmotionHappy      Emotion = "happy"
	EmotionSad        Emotion = "sad"
	EmotionAngry      Emotion = "angry"
	EmotionAnxious    Emotion = "anxious"
	EmotionNeutral    Emotion = "neutral"
	EmotionExcited    Emotion = "excited"
	EmotionConfused   Emotion = "confused"
	EmotionFrustrated Emotion = "frustrated"
)

// Emotions lists every valid category, in prompt order.
var Emotions = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionAnxious,
	EmotionNeutral,
	EmotionExcited,
	EmotionConfused,
	EmotionFrustrated,
}

// ValenceArousal holds a position on the circumplex model of affect.
// Valence runs -1 (negative) to 1 (positive); arousal 0 (low energy) to 1.
type ValenceArousal struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
}

var emotionCircumplex = map[Emotion]ValenceArousal{
	EmotionHappy:      {Valence: 0.8, Arousal: 0.6},
	EmotionExcited:    {Valence: 0.9, Arousal: 0.9},
	EmotionSad:        {Valence: -0.7, Arousal: 0.3},
	EmotionAnxious:    {Valence: -0.5, Arousal: 0.8},
	EmotionAngry:      {Valence: -0.8, Arousal: 0.9},
	EmotionFrustrated: {Valence: -0.6, Arousal: 0.7},
	EmotionConfused:   {Valence: -0.3, Arousal: 0.5},
	EmotionNeutral:    {Valence: 0.0, Arousal: 0.5},
}

// Valid reports whether e is a known category.
func (e Emotion) Valid() bool {
	_, ok := emotionCircumplex[e]
	return ok
}

// Circumplex returns the valence/arousal position for e, defaulting to
// the neutral position for unknown categories.
func (e Emotion) Circumplex() ValenceArousal {
	if va, ok := emotionCircumplex[e]; ok {
		return va
	}
	return emotionCircumplex[EmotionNeutral]
}

// EmotionEvent records one classification of a finalized user turn.
type EmotionEvent struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	MessageID  string         `json:"message_id,omitempty"`
	Emotion    Emotion        `json:"emotion"`
	Confidence float64        `json:"confidence"`
	Intensity  float64        `json:"intensity"`
	Valence    float64        `json:"valence"`
	Arousal    float64        `json:"arousal"`
	Context    map[string]any `json:"context,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}

// Normalize coerces the event into its declared ranges: unknown emotions
// become neutral, confidence/intensity/arousal clamp to [0,1] and valence
// to [-1,1]. Events are normalized at the pipeline boundary so nothing
// out-of-range is ever stored.
func (ev EmotionEvent) Normalize() EmotionEvent {
	if !ev.Emotion.Valid() {
		ev.Emotion = EmotionNeutral
		va := ev.Emotion.Circumplex()
		ev.Valence, ev.Arousal = va.Valence, va.Arousal
	}
	ev.Confidence = clamp(ev.Confidence, 0, 1)
	ev.Intensity = clamp(ev.Intensity, 0, 1)
	ev.Valence = clamp(ev.Valence, -1, 1)
	ev.Arousal = clamp(ev.Arousal, 0, 1)
	return ev
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EmotionAggregate is the derived per-session running statistic over
// emotion events. It is recomputed incrementally and never persisted
// by the engine itself.
type EmotionAggregate struct {
	TotalEvents int             `json:"total_events"`
	Counts      map[Emotion]int `json:"counts"`
	MeanValence float64         `json:"mean_valence"`
	MeanArousal float64         `json:"mean_arousal"`
	Dominant    Emotion         `json:"dominant_emotion"`
	Transitions int             `json:"transitions"`

	lastEmotion Emotion
	sumValence  float64
	sumArousal  float64
}

// Observe folds one normalized event into the aggregate.
func (a *EmotionAggregate) Observe(ev EmotionEvent) {
	if a.Counts == nil {
		a.Counts = make(map[Emotion]int)
	}
	if a.lastEmotion != "" && a.lastEmotion != ev.Emotion {
		a.Transitions++
	}
	a.lastEmotion = ev.Emotion

	a.TotalEvents++
	a.Counts[ev.Emotion]++
	a.sumValence += ev.Valence
	a.sumArousal += ev.Arousal
	a.MeanValence = a.sumValence / float64(a.TotalEvents)
	a.MeanArousal = a.sumArousal / float64(a.TotalEvents)

	if a.Counts[ev.Emotion] >= a.Counts[a.Dominant] {
		a.Dominant = ev.Emotion
	}
}

// Distribution returns per-emotion percentages of observed events.
func (a *EmotionAggregate) Distribution() map[Emotion]float64 {
	out := make(map[Emotion]float64, len(a.Counts))
	if a.TotalEvents == 0 {
		return out
	}
	for emotion, count := range a.Counts {
		out[emotion] = float64(count) / float64(a.TotalEvents) * 100
	}
	return out
}
