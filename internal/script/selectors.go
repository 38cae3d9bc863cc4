package script

import (
	"fmt"
	"strings"

	"chatpilot/internal/domain"
)

// SelectorChain is an ordered list of CSS selectors for one logical target.
// The first selector that matches wins.
type SelectorChain []string

// JSExpr renders the chain as a JavaScript expression evaluating to the first
// matching element, or null.
func (c SelectorChain) JSExpr() string {
	parts := make([]string, len(c))
	for i, sel := range c {
		parts[i] = "document.querySelector(" + quoteSingle(sel) + ")"
	}
	return strings.Join(parts, "\n            || ")
}

// JSArray renders the chain as a JavaScript array literal of selector strings.
func (c SelectorChain) JSArray() string {
	parts := make([]string, len(c))
	for i, sel := range c {
		parts[i] = quoteSingle(sel)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Concat returns a new chain with other appended.
func (c SelectorChain) Concat(other SelectorChain) SelectorChain {
	out := make(SelectorChain, 0, len(c)+len(other))
	out = append(out, c...)
	return append(out, other...)
}

// Chains groups the selector chains for every logical target.
type Chains struct {
	ChatInput       SelectorChain
	AnyTextarea     SelectorChain
	SendButton      SelectorChain
	StreamIndicator SelectorChain
	HealthyMarker   SelectorChain
	// EditorClass marks the rich editor that needs the insert-text fill path.
	EditorClass string
}

// DefaultChains returns the selectors for the current chat application markup.
func DefaultChains() Chains {
	return Chains{
		ChatInput: SelectorChain{
			`.chat-input-editor`,
			`div[contenteditable="true"]`,
			`textarea[placeholder*="Ask"]`,
			`textarea[placeholder*="Message"]`,
			`textarea[placeholder*="ask"]`,
			`textarea[data-testid]`,
		},
		AnyTextarea: SelectorChain{`textarea`},
		SendButton: SelectorChain{
			`.send-button-container:not(.disabled)`,
			`.send-button-container`,
			`button[type="submit"]`,
			`button[aria-label*="send" i]`,
			`button[aria-label*="Send" i]`,
			`button[data-testid*="send" i]`,
			`form button:last-of-type`,
		},
		StreamIndicator: SelectorChain{
			`button[aria-label*="stop" i]`,
			`button[aria-label*="Stop" i]`,
			`button[aria-label*="cancel" i]`,
			`button[data-testid*="stop" i]`,
		},
		HealthyMarker: SelectorChain{`[data-sidebar]`},
		EditorClass:   "chat-input-editor",
	}
}

// Input is the chat-input chain with the any-textarea last resort appended.
func (c Chains) Input() SelectorChain {
	return c.ChatInput.Concat(c.AnyTextarea)
}

// Validate rejects empty chains and empty selectors.
func (c Chains) Validate() error {
	named := []struct {
		name  string
		chain SelectorChain
	}{
		{"chat_input", c.ChatInput},
		{"any_textarea", c.AnyTextarea},
		{"send_button", c.SendButton},
		{"stream_indicator", c.StreamIndicator},
		{"healthy_marker", c.HealthyMarker},
	}
	for _, n := range named {
		if len(n.chain) == 0 {
			return domain.NewDomainError("Chains.Validate", domain.ErrInvalidInput,
				fmt.Sprintf("selector chain %q is empty", n.name))
		}
		for i, sel := range n.chain {
			if strings.TrimSpace(sel) == "" {
				return domain.NewDomainError("Chains.Validate", domain.ErrInvalidInput,
					fmt.Sprintf("selector chain %q entry %d is empty", n.name, i))
			}
		}
	}
	if strings.TrimSpace(c.EditorClass) == "" {
		return domain.NewDomainError("Chains.Validate", domain.ErrInvalidInput, "editor class is empty")
	}
	return nil
}
