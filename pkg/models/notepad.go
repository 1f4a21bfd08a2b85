package models

import "time"

// NoteEntry is one authored entry in the shared notepad. Topic is a dot-path
// such as "architecture.layers"; Author is the writing agent's id.
type NoteEntry struct {
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Topic     string    `json:"topic"`
}
