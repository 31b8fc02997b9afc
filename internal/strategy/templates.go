package strategy

// #region counter-anchor

const (
	counterAnchorFirm = "I see you're starting with an aggressive position. Let me give you the real numbers based on market data. " +
		"My research shows the fair range is quite different from what you're suggesting. Here's what the facts tell us..."
	counterAnchorSoft = "I understand that's your starting position. Based on my analysis of comparable situations, " +
		"there's room for us to find middle ground. Let me share some objective criteria that might help us both."
)

// #endregion counter-anchor

// #region template-sets

var disclosureTemplates = []string{
	"That's helpful context. To make sure I understand your needs fully, can you tell me more about what's driving that requirement?",
	"I appreciate you sharing that. What would happen if we couldn't meet that specific point? Are there alternatives that might work?",
	"Good question. Let me think about that. Before I answer, it would help to know what flexibility you might have on other aspects of this deal.",
}

var concessionTemplates = []string{
	"I appreciate you showing some flexibility there. If you can move on that, I can look at giving a little on my side as well. What matters most to you in return?",
	"That's a step in the right direction. I'm open to meeting you partway, as long as we both give something. Which part of the deal is hardest for you to let go of?",
	"Thank you for working with me on this. Let's trade rather than split: tell me what you'd value most and I'll see what I can offer in exchange.",
}

var urgencyTemplates = []string{
	"I hear that timing matters to you, and I want to get this done too. Let's focus on the one or two points that would let us both say yes quickly.",
	"If we're both under time pressure, let's work on this together. Tell me what you need settled first and I'll tell you mine.",
}

var topicTemplates = map[string][]string{
	"price": {
		"I understand price is important here. Before we trade numbers, can you tell me what the price needs to accomplish for you? There may be ways to get there besides the sticker figure.",
		"Price matters to me too. Let's look at what's driving the number on both sides, so we can find a figure we can each justify.",
		"I hear you on cost. What would make the total package feel like good value to you, beyond the price itself?",
	},
	"time": {
		"Timing is clearly a factor. Help me understand what's behind your schedule, and I'll share the constraints I'm working with.",
		"I understand time matters here. If we can agree on the timeline first, the rest may fall into place more easily. What date really works for you?",
	},
	"quality": {
		"Quality is important to me as well. What specific concerns do you have about the condition? I'd rather address them directly.",
		"I'm glad you raised quality. Let's talk about what standard you need and how we can give you confidence in it.",
	},
}

var genericTemplates = []string{
	"I understand your position. Let me share what's important to me in this situation, and I'd like to understand what matters most to you. That way we can find a solution that works for both of us.",
	"You raise a good point. Rather than focusing on our positions, let's talk about what we're both trying to achieve here. What would make this deal valuable for you?",
	"I appreciate you being direct. I have some key interests I need to address, and I'm sure you do too. Can we explore how to meet both our needs?",
}

// #endregion template-sets

// #region instruction-clauses

const (
	primaryInterestClause = " In this situation, what's particularly important to me is %s. How can we work together on this?"
	keyConstraintClause   = " I should mention that I have some specific constraints around %s. What flexibility do you have?"
	contextClause         = " Given the context of this situation, I want to make sure we're both satisfied with the outcome."
)

// #endregion instruction-clauses
