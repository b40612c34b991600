package responder

import (
	"context"
	"math/rand"
)

// Responder maps inbound message text to reply text. Implementations must
// return promptly; the dispatcher calls Generate synchronously on the
// message path.
type Responder interface {
	Generate(ctx context.Context, content string) (string, error)
}

// cannedReplies is the fixed reply set used until a real generator is
// plugged in.
var cannedReplies = []string{
	"That's interesting! Tell me more.",
	"I understand. How does that make you feel?",
	"Thanks for sharing that with me.",
	"I'm here to listen. What else is on your mind?",
	"That's a good point. I hadn't thought of it that way.",
	"I appreciate your perspective on this.",
	"Let me think about that for a moment...",
	"I'm not sure I follow. Could you elaborate?",
	"That's fascinating! I'd like to hear more about that.",
	"I see what you mean. That makes sense.",
}

// Canned replies with a uniformly random pick from a fixed set.
type Canned struct {
	replies []string
}

// NewCanned creates the placeholder responder.
func NewCanned() *Canned {
	return &Canned{replies: cannedReplies}
}

// Generate ignores the inbound content and returns a random canned reply.
func (c *Canned) Generate(_ context.Context, _ string) (string, error) {
	return c.replies[rand.Intn(len(c.replies))], nil
}

// Replies exposes the configured reply set, for callers that need to
// recognize canned output.
func (c *Canned) Replies() []string {
	out := make([]string, len(c.replies))
	copy(out, c.replies)
	return out
}
