package agent

import (
	"fmt"
	"strings"
)

// systemPrompt renders the agent's standing instructions: identity, target,
// depth budget, tool vocabulary and the parent's context packet.
func systemPrompt(spec Spec, maxDepth int, delegationOpen bool) string {
	var b strings.Builder

	b.WriteString("You are a repository exploration agent documenting a codebase. ")
	b.WriteString("You work with read-only tools and share findings through a notepad ")
	b.WriteString("other agents also write to.\n\n")

	fmt.Fprintf(&b, "Purpose: %s\n", spec.Purpose)
	if spec.Target != "" {
		fmt.Fprintf(&b, "Target: %s (stay focused on this part of the repository)\n", spec.Target)
	} else {
		b.WriteString("Target: the whole repository\n")
	}
	fmt.Fprintf(&b, "Delegation depth: %d of %d", spec.Depth, maxDepth)
	if delegationOpen {
		b.WriteString(" (you may delegate narrower targets to child agents)\n")
	} else {
		b.WriteString(" (the ceiling is reached: do not attempt to delegate)\n")
	}

	b.WriteString("\nTools:\n")
	for _, def := range toolDefinitions(delegationOpen) {
		fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
	}

	b.WriteString("\nMethod: list directories before reading files; read the files that ")
	b.WriteString("matter; write every durable finding to the notepad under a dot-path ")
	b.WriteString("topic (e.g. architecture.layers); conclude with the finish tool. ")
	b.WriteString("Your finish summary should state what the target does, its key files, ")
	b.WriteString("and how it connects to the rest of the repository.\n")

	if spec.ContextPacket != "" {
		b.WriteString("\nContext from your parent (read-only prior knowledge):\n")
		b.WriteString(spec.ContextPacket)
		b.WriteString("\n")
	}
	return b.String()
}

// initialUserPrompt opens the conversation.
func initialUserPrompt(spec Spec) string {
	if spec.Target != "" {
		return fmt.Sprintf("Explore %s. %s", spec.Target, spec.Purpose)
	}
	return "Explore the repository. " + spec.Purpose
}

// finalSummaryDirective is appended when an agent runs out of steps or
// finished without a usable summary. The follow-up call runs without tools.
const finalSummaryDirective = "You have used your step budget. Reply now with your " +
	"final summary as plain text: what the target does, its key files, and how it " +
	"connects to the rest of the repository. Do not call any tools."

// delegationAck is the immediate tool result for a scheduled child.
func delegationAck(childID, target string) string {
	return fmt.Sprintf("Scheduled child agent %s to explore %s. Its summary will "+
		"arrive as a later tool result; continue your own work meanwhile.", childID, target)
}

// delegationResult formats a completed child's summary for the parent's
// context.
func delegationResult(r childResult) string {
	if r.Err != nil {
		return fmt.Sprintf("Child agent %s (%s) failed: %v", r.ID, r.Target, r.Err)
	}
	return fmt.Sprintf("Child agent %s finished exploring %s:\n%s", r.ID, r.Target, r.Summary)
}
