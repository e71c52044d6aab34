package council

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/councilmesh/core"
)

// systemPrompt renders a participant's dossier into role-play instructions.
func systemPrompt(p core.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s.\n", p.Person, p.Title)
	if p.Mandate != "" {
		fmt.Fprintf(&b, "\n## Your Mandate\n%s\n", p.Mandate)
	}
	if p.Priorities != "" {
		fmt.Fprintf(&b, "\n## Your Enduring Priorities\n%s\n", p.Priorities)
	}
	if len(p.Weights) > 0 {
		b.WriteString("\n## Your Priority Weights\n")
		for _, dim := range sortedKeys(p.Weights) {
			fmt.Fprintf(&b, "- %s: %g\n", dim, p.Weights[dim])
		}
	}
	if len(p.RedLines) > 0 {
		b.WriteString("\n## Your Red Lines (Non-negotiable Constraints)\n")
		for _, rl := range p.RedLines {
			fmt.Fprintf(&b, "- %s\n", rl)
		}
	}
	return b.String()
}

func writeContext(b *strings.Builder, heading, context string) {
	if context == "" {
		return
	}
	fmt.Fprintf(b, "## %s\n\n%s\n\n", heading, context)
}

func writeMemories(b *strings.Builder, memories []core.ScoredMemory) {
	if len(memories) == 0 {
		return
	}
	b.WriteString("## Your Relevant Memories from Past Deliberations\n\n")
	for _, m := range memories {
		when := m.Record.CreatedAt.Format("January 2, 2006 at 3:04 PM")
		if m.Record.Kind == core.KindReflection {
			fmt.Fprintf(b, "**[REFLECTION]** (%s)\n  %s\n", when, m.Record.Content)
		} else {
			fmt.Fprintf(b, "- [%s] %s\n", when, m.Record.Content)
		}
	}
	b.WriteString("\n")
}

func recommendationPrompt(query, context string, memories []core.ScoredMemory, prior []core.Recommendation) string {
	var b strings.Builder
	writeContext(&b, "Relevant Background Information", context)
	writeMemories(&b, memories)

	if len(prior) > 0 {
		b.WriteString("## Other Advisors' Recommendations\n\n")
		for _, rec := range prior {
			fmt.Fprintf(&b, "**%s (%s)**:\n%s\n\n", rec.Person, rec.Role, rec.Body)
		}
	}

	fmt.Fprintf(&b, "## Policy Question\n\n%s\n", query)
	b.WriteString(`
## Your Task

Provide your recommendation to the decision-maker on this policy question. Your response should include:

1. **Recommendation**: Your clear, actionable recommendation
2. **Rationale**: Why you recommend this course of action, based on your mandate, your priority weights and the background information
3. **Risks**: Key risks and potential downsides of your recommendation
4. **Alternatives**: Brief mention of alternative approaches (if any)

Be direct and specific. The decision-maker needs clear guidance rooted in your expertise and responsibilities.
`)
	return b.String()
}

func decisionPrompt(query, context string, memories []core.ScoredMemory, recs []core.Recommendation, weights []core.AdvisorWeight) string {
	byRole := make(map[string]core.AdvisorWeight, len(weights))
	for _, w := range weights {
		byRole[w.Role] = w
	}

	var b strings.Builder
	writeContext(&b, "Background Information", context)
	writeMemories(&b, memories)
	fmt.Fprintf(&b, "## Policy Question\n\n%s\n\n", query)

	b.WriteString("## Advisor Recommendations\n\n")
	b.WriteString("You have received recommendations from your advisors. Here is how much weight to give each advisor:\n\n")
	for _, rec := range recs {
		w := byRole[rec.Role]
		fmt.Fprintf(&b, "### %s (%s)\n", rec.Person, rec.Role)
		fmt.Fprintf(&b, "**Weight**: %.2f\n", w.Final)
		fmt.Fprintf(&b, "**Explanation**: Relationship=%.2f, Alignment=%.2f, Final Weight=%.2f\n",
			w.Relationship, w.Alignment, w.Final)
		fmt.Fprintf(&b, "\n**Recommendation**:\n%s\n\n", rec.Body)
	}

	b.WriteString(`## Your Task

Make your final decision on this policy question. Your response should include:

1. **Decision**: Your clear, actionable decision
2. **Rationale**: Which advisors' recommendations you gave more weight to and why, and your own judgment of the situation
3. **Implementation**: Any specific guidance on how to implement this decision

Remember: you make the final call based on your priorities, your relationships with your advisors, and your judgment.
`)
	return b.String()
}

func problemsPrompt(query, context string, memories []core.ScoredMemory, prior []core.MeetingTranscript) string {
	var b strings.Builder
	writeContext(&b, "Background Information", context)
	if query != "" {
		fmt.Fprintf(&b, "## Current Scenario\n\n%s\n\n", query)
	}
	writeMemories(&b, memories)

	if len(prior) > 0 {
		b.WriteString("## Previous Advisor Meetings\n\nYou are aware of these previous discussions:\n\n")
		for _, meeting := range prior {
			fmt.Fprintf(&b, "**Meeting with %s:**\n", meeting.Person)
			fmt.Fprintf(&b, "- Presented %d problems\n", len(meeting.Problems))
			if sel := meeting.Selected(); sel.Title != "" {
				fmt.Fprintf(&b, "- The decision-maker focused on: %s\n", sel.Title)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(`## Your Task

Based on the scenario and your expertise, identify the **3 most pressing policy problems** in your domain that require the decision-maker's attention.

For each problem, provide:

1. **Title**: Brief, clear title (5-10 words)
2. **Description**: What is the problem? Why is it urgent? (2-3 sentences)
3. **Initial Recommendation**: Your preliminary recommendation for addressing it (1-2 sentences)

Format your response exactly as follows:

**PROBLEM 1**
Title: [Your title]
Description: [Your description]
Initial Recommendation: [Your recommendation]

**PROBLEM 2**
Title: [Your title]
Description: [Your description]
Initial Recommendation: [Your recommendation]

**PROBLEM 3**
Title: [Your title]
Description: [Your description]
Initial Recommendation: [Your recommendation]

Focus on problems that align with your mandate and priority weights. Be specific and actionable.
`)
	return b.String()
}

func selectionPrompt(advisor core.Participant, problems []core.Problem, context string, memories []core.ScoredMemory, prior []core.MeetingTranscript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Meeting with %s (%s)\n\n", advisor.Person, advisor.Role)
	fmt.Fprintf(&b, "%s has presented %d policy problems for your consideration:\n\n", advisor.Person, len(problems))
	for i, p := range problems {
		fmt.Fprintf(&b, "**PROBLEM %d**\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
		fmt.Fprintf(&b, "Description: %s\n", p.Description)
		fmt.Fprintf(&b, "Initial Recommendation: %s\n\n", p.Recommendation)
	}

	writeContext(&b, "Background Information", context)
	writeMemories(&b, memories)

	if len(prior) > 0 {
		b.WriteString("## Previous Meetings Today\n\n")
		for _, meeting := range prior {
			fmt.Fprintf(&b, "- Met with %s", meeting.Person)
			if sel := meeting.Selected(); sel.Title != "" {
				fmt.Fprintf(&b, " and discussed: %s", sel.Title)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`## Your Task

Select the **ONE** problem that is most pressing or interesting to you, then formulate **ONE** follow-up question for the advisor.

Format your response exactly as follows:

**SELECTED PROBLEM**: [Number 1, 2, or 3]

**REASON**: [Brief explanation of why this problem is most important to you - 1-2 sentences]

**QUESTION**: [Your specific follow-up question for the advisor]

Choose based on your priorities, the urgency of the situation, what you need to know to make a decision, and context from previous meetings.
`)
	return b.String()
}

func answerPrompt(problem core.Problem, question, context string, memories []core.ScoredMemory) string {
	var b strings.Builder
	b.WriteString("## The Problem You Presented\n\n")
	fmt.Fprintf(&b, "**Title**: %s\n", problem.Title)
	fmt.Fprintf(&b, "**Description**: %s\n", problem.Description)
	fmt.Fprintf(&b, "**Your Initial Recommendation**: %s\n\n", problem.Recommendation)

	writeContext(&b, "Relevant Background Information", context)
	writeMemories(&b, memories)

	fmt.Fprintf(&b, "## The Decision-Maker's Question\n\n%s\n", question)
	b.WriteString(`
## Your Task

Answer the question directly and thoroughly, drawing on your expertise, the problem context you presented, the background information and your past experience. Be specific, actionable, and honest about risks and trade-offs.
`)
	return b.String()
}

func synthesisPrompt(query, context string, memories []core.ScoredMemory, transcripts []core.MeetingTranscript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Scenario\n\n%s\n\n", query)
	writeContext(&b, "Background Information", context)
	writeMemories(&b, memories)

	b.WriteString("## Advisor Meeting Summaries\n\nYou met with your advisors and discussed the following:\n\n")
	for i, meeting := range transcripts {
		fmt.Fprintf(&b, "### Meeting %d: %s (%s)\n\n", i+1, meeting.Person, meeting.Role)
		b.WriteString("**Problems Presented:**\n")
		for j, p := range meeting.Problems {
			fmt.Fprintf(&b, "%d. %s\n", j+1, p.Title)
		}
		if sel := meeting.Selected(); sel.Title != "" {
			fmt.Fprintf(&b, "\n**Discussion Focus:** %s\n", sel.Title)
		}
		fmt.Fprintf(&b, "**Your Question:** %s\n", meeting.Question)
		fmt.Fprintf(&b, "**%s's Answer:** %s\n\n", meeting.Person, meeting.Answer)
	}

	b.WriteString(`## Your Task

Write a comprehensive **Policy Document** that synthesizes all the discussions and presents your final policy position.

Use the following structure:

# Policy Document

## I. SITUATION ASSESSMENT
[Summarize the current situation based on the scenario and advisor input]

## II. POLICY ANALYSIS
[Analyze the key problems identified by your advisors and your assessment of each]

## III. POLICY DECISION
[Your clear, actionable policy decisions]

## IV. IMPLEMENTATION GUIDANCE
[Specific guidance on how to implement these decisions: immediate actions, resource allocation, coordination, timeline]

Be comprehensive but concise. This document represents the official policy position.
`)
	return b.String()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
