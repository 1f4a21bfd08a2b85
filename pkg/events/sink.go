package events

// NotepadSink adapts the bus to the notepad's EventSink interface.
type NotepadSink struct {
	Bus *Bus
}

// NotepadCreated publishes a notepad_created event.
func (s NotepadSink) NotepadCreated(topic, author string) {
	s.Bus.Publish(Event{Type: TypeNotepadCreated, AgentID: author, Topic: topic})
}

// NotepadWritten publishes a notepad_write event.
func (s NotepadSink) NotepadWritten(topic, author string) {
	s.Bus.Publish(Event{Type: TypeNotepadWrite, AgentID: author, Topic: topic})
}
