// Package engine defines the boundary to the conversation engine: the
// component that actually generates responses and runs tools. The agent
// runtime drives any Engine implementation through submissions and an
// event stream; it never reaches past this interface.
package engine

import "context"

// Engine is the conversation/inference backend.
//
// Submit enqueues one submission; NextEvent blocks for the next engine
// event. A single goroutine (the execution loop) is the only caller of
// NextEvent, so implementations need not support concurrent reads.
type Engine interface {
	Submit(ctx context.Context, sub Submission) error
	NextEvent(ctx context.Context) (Event, error)
	Close() error
}

// Op type constants.
const (
	OpUserInput = "user_input"
	OpInterrupt = "interrupt"
	OpShutdown  = "shutdown"
)

// Input item type constants.
const (
	ItemText  = "text"
	ItemImage = "image"
)

// Submission is one unit of work handed to the engine.
type Submission struct {
	// ID correlates the submission with the events it produces.
	ID string `json:"id"`

	Op Op `json:"op"`
}

// Op describes what the engine should do.
type Op struct {
	// Type is one of the Op* constants.
	Type string `json:"type"`

	// Items carries the user input for user_input ops.
	Items []InputItem `json:"items,omitempty"`
}

// InputItem is one piece of user input: text or an image.
type InputItem struct {
	// Type is ItemText or ItemImage.
	Type string `json:"type"`

	// Text is set for text items.
	Text string `json:"text,omitempty"`

	// ImageURL is set for image items (data URL or remote URL).
	ImageURL string `json:"image_url,omitempty"`

	// Description is optional alt text for image items.
	Description string `json:"description,omitempty"`
}

// TextItem builds a text input item.
func TextItem(text string) InputItem {
	return InputItem{Type: ItemText, Text: text}
}

// ImageItem builds an image input item from a URL or data URL.
func ImageItem(url, description string) InputItem {
	return InputItem{Type: ItemImage, ImageURL: url, Description: description}
}
