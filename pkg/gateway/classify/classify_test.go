package classify

import (
	"testing"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

func TestParseResponsePlainJSON(t *testing.T) {
	got, err := parseResponse(`{"emotion":"happy","confidence":0.9,"intensity":0.7,"reasoning":"upbeat"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Emotion != types.EmotionHappy || got.Confidence != 0.9 || got.Intensity != 0.7 {
		t.Fatalf("result = %+v", got)
	}
}

func TestParseResponseStripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"emotion\":\"sad\",\"confidence\":0.8,\"intensity\":0.5}\n```"
	got, err := parseResponse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Emotion != types.EmotionSad {
		t.Fatalf("result = %+v", got)
	}

	bare := "```\n{\"emotion\":\"angry\",\"confidence\":0.7,\"intensity\":0.9}\n```"
	got, err = parseResponse(bare)
	if err != nil {
		t.Fatalf("parse bare fence: %v", err)
	}
	if got.Emotion != types.EmotionAngry {
		t.Fatalf("result = %+v", got)
	}
}

func TestParseResponseCoercesBadValues(t *testing.T) {
	got, err := parseResponse(`{"emotion":"euphoric","confidence":1.8,"intensity":-0.4}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Emotion != types.EmotionNeutral {
		t.Fatalf("emotion = %s, want neutral for unknown category", got.Emotion)
	}
	if got.Confidence != 0.5 || got.Intensity != 0.5 {
		t.Fatalf("confidence/intensity = %v/%v, want defaults", got.Confidence, got.Intensity)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	if _, err := parseResponse("I think the user sounds happy"); err == nil {
		t.Fatal("prose reply parsed")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Unix(1_000, 0)
	rl.now = func() time.Time { return now }

	for i := range 3 {
		if !rl.allow() {
			t.Fatalf("call %d denied inside capacity", i)
		}
	}
	if rl.allow() {
		t.Fatal("fourth call inside window admitted")
	}

	// Just before expiry the window is still full.
	now = now.Add(59 * time.Second)
	if rl.allow() {
		t.Fatal("call admitted before window slid")
	}
	// After the window slides past the first burst, capacity returns.
	now = now.Add(2 * time.Second)
	if !rl.allow() {
		t.Fatal("call denied after window slid")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	for range 100 {
		if !rl.allow() {
			t.Fatal("unlimited limiter denied a call")
		}
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := newTTLCache[int](30 * time.Second)
	now := time.Unix(1_000, 0)
	c.now = func() time.Time { return now }

	c.put("k", 7)
	if v, ok := c.get("k"); !ok || v != 7 {
		t.Fatalf("get = %v/%v", v, ok)
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.get("k"); ok {
		t.Fatal("entry survived past TTL")
	}
}

func TestCacheKeyNormalizes(t *testing.T) {
	if cacheKey("  Hello   World ") != cacheKey("hello world") {
		t.Fatal("whitespace/case variants hash differently")
	}
	if cacheKey("hello world") == cacheKey("hello there") {
		t.Fatal("distinct texts collide")
	}
}
